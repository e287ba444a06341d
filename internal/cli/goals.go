package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telos-app/telos/internal/engine"
	"github.com/telos-app/telos/internal/match"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals",
}

// --- goal add ---

var (
	goalStart         string
	goalTarget        string
	goalUnit          string
	goalValue         float64
	goalActionability string
)

var goalAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a goal",
	Long:  "Add a goal. --unit and --value define what counts as progress; --start and --target bound the period it is active.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGoalAdd,
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals with progress",
	RunE:  runGoalList,
}

func init() {
	goalAddCmd.Flags().StringVar(&goalStart, "start", "", "Start of the goal period (RFC3339 or YYYY-MM-DD)")
	goalAddCmd.Flags().StringVar(&goalTarget, "target", "", "End of the goal period (RFC3339 or YYYY-MM-DD)")
	goalAddCmd.Flags().StringVarP(&goalUnit, "unit", "u", "", "Unit that counts toward this goal, e.g. km")
	goalAddCmd.Flags().Float64VarP(&goalValue, "value", "v", 0, "Target amount in that unit")
	goalAddCmd.Flags().StringVar(&goalActionability, "actionability", "", `Matching hints as JSON, e.g. {"units":["km"],"keywords":["run*"]}`)

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
}

func runGoalAdd(cmd *cobra.Command, args []string) error {
	goal := match.Goal{
		Title:         strings.Join(args, " "),
		TargetUnit:    goalUnit,
		TargetValue:   goalValue,
		Actionability: goalActionability,
	}

	for _, pair := range []struct {
		raw  string
		dest **time.Time
	}{
		{goalStart, &goal.StartDate},
		{goalTarget, &goal.TargetDate},
	} {
		if pair.raw == "" {
			continue
		}
		ts, err := parseCLITime(pair.raw)
		if err != nil {
			return err
		}
		*pair.dest = &ts
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := db.CreateGoal(&goal); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	fmt.Printf("added %s (%s)\n", goal.Title, goal.ID)
	return nil
}

func runGoalList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	goals, err := db.ListGoals()
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	if len(goals) == 0 {
		fmt.Println("No goals yet. Add one with `telos goal add`.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng := engine.New(db)
	for _, goal := range goals {
		progress, err := eng.GoalProgress(ctx, goal.ID)
		if err != nil {
			return fmt.Errorf("progress for %s: %w", goal.ID, err)
		}
		printProgress(progress)
	}
	return nil
}

// --- progress command ---

var progressCmd = &cobra.Command{
	Use:   "progress [goal-id]",
	Short: "Show progress toward a goal",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgress,
}

func runProgress(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	progress, err := engine.New(db).GoalProgress(ctx, args[0])
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	printProgress(progress)
	return nil
}

func printProgress(p *engine.Progress) {
	if p.TargetValue > 0 {
		fmt.Printf("%s — %.4g/%.4g %s (%.0f%%)  [%s]\n",
			p.Title, p.Contributed, p.TargetValue, p.TargetUnit, p.Percent, p.GoalID)
		return
	}
	fmt.Printf("%s — %.4g %s  [%s]\n", p.Title, p.Contributed, p.TargetUnit, p.GoalID)
}
