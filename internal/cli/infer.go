package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telos-app/telos/internal/config"
	"github.com/telos-app/telos/internal/engine"
	"github.com/telos-app/telos/internal/match"
)

// --- infer command ---

var (
	inferStart  string
	inferTarget string
	inferDays   int
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Match logged actions against goals",
	Long:  "Run batch inference over a window of logged actions. Confident matches are recorded; ambiguous ones wait in `telos review`.",
	RunE:  runInfer,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List suggestions waiting for review",
	RunE:  runReview,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [relationship-id]",
	Short: "Confirm a suggested match",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfirm,
}

var rejectCmd = &cobra.Command{
	Use:   "reject [relationship-id]",
	Short: "Discard a suggested match",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

var assignCmd = &cobra.Command{
	Use:   "assign [action-id] [goal-id]",
	Short: "Manually link an action to a goal",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssign,
}

var assignContribution float64

func init() {
	inferCmd.Flags().StringVar(&inferStart, "start", "", "Window start (RFC3339 or YYYY-MM-DD)")
	inferCmd.Flags().StringVar(&inferTarget, "target", "", "Window end (RFC3339 or YYYY-MM-DD)")
	inferCmd.Flags().IntVar(&inferDays, "days", 7, "Window size when --start is omitted")

	assignCmd.Flags().Float64VarP(&assignContribution, "contribution", "c", -1, "Contribution override (default: inferred from measurements)")
}

func runInfer(cmd *cobra.Command, args []string) error {
	target := time.Now()
	if inferTarget != "" {
		ts, err := parseCLITime(inferTarget)
		if err != nil {
			return err
		}
		target = ts
	}
	start := target.AddDate(0, 0, -inferDays)
	if inferStart != "" {
		ts, err := parseCLITime(inferStart)
		if err != nil {
			return err
		}
		start = ts
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng := engine.New(db)
	if cfgDir, err := config.DefaultConfigDir(); err == nil {
		if cfg, err := config.Load(cfgDir); err == nil {
			eng.Threshold = cfg.Inference.ConfidenceThreshold
			eng.RequirePeriodMatch = cfg.Inference.RequirePeriodMatch
		}
	}

	session, err := eng.InferForPeriod(ctx, start, target)
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}

	fmt.Printf("analyzed %d actions against %d goals\n", session.ActionsAnalyzed, session.GoalsAnalyzed)
	fmt.Printf("  recorded:   %d\n", len(session.Confident))
	fmt.Printf("  for review: %d\n", len(session.Ambiguous))
	fmt.Printf("  unmatched:  %d\n", len(session.Unmatched))
	if len(session.Ambiguous) > 0 {
		fmt.Println("\nrun `telos review` to go through the suggestions.")
	}
	return nil
}

func runReview(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pending, err := engine.New(db).PendingReview(ctx)
	if err != nil {
		return fmt.Errorf("pending review: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("Nothing waiting for review.")
		return nil
	}

	for _, rel := range pending {
		action, _ := db.GetAction(rel.ActionID)
		goal, _ := db.GetGoal(rel.GoalID)
		actionTitle, goalTitle := rel.ActionID, rel.GoalID
		if action != nil {
			actionTitle = action.Title
		}
		if goal != nil {
			goalTitle = goal.Title
		}
		fmt.Printf("%s\n  %s → %s (+%.2g, confidence %.2f, matched on %s)\n",
			rel.ID, actionTitle, goalTitle, rel.Contribution, rel.Confidence, criteriaString(rel.MatchedOn))
	}
	fmt.Println("\nconfirm with `telos confirm <id>` or discard with `telos reject <id>`.")
	return nil
}

func runConfirm(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rel, err := engine.New(db).ConfirmSuggestion(ctx, args[0])
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	fmt.Printf("confirmed %s (+%.2g)\n", rel.ID, rel.Contribution)
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := engine.New(db).RejectSuggestion(ctx, args[0]); err != nil {
		return fmt.Errorf("reject: %w", err)
	}
	fmt.Printf("discarded %s\n", args[0])
	return nil
}

func runAssign(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var contribution *float64
	if cmd.Flags().Changed("contribution") {
		contribution = &assignContribution
	}

	rel, err := engine.New(db).ManualAssign(ctx, args[0], args[1], contribution)
	if err != nil {
		return fmt.Errorf("assign: %w", err)
	}
	fmt.Printf("linked %s → %s (+%.2g)\n", rel.ActionID, rel.GoalID, rel.Contribution)
	return nil
}

func criteriaString(criteria []match.Criterion) string {
	if len(criteria) == 0 {
		return "nothing"
	}
	parts := make([]string, len(criteria))
	for i, c := range criteria {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
