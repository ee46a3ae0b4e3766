package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quartermaster/internal/state"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [plan-id]",
	Short: "Show past plan runs",
	Long: `History lists recently finished plans, newest first. Pass a plan ID to
show the per-task record of a single run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := state.Open(cfg.Data.HistoryPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		if len(args) == 1 {
			return showRunDetail(db, args[0])
		}
		return listRuns(db)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s  %q\n",
			run.FinishedAt.Local().Format("2006-01-02 15:04"),
			colorDisposition(run.Disposition),
			run.ID,
			run.Utterance)
	}
	return nil
}

func showRunDetail(db *state.DB, planID string) error {
	run, err := db.GetRun(planID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run with ID %s", planID)
	}

	fmt.Printf("Plan %s (%s)\n", run.ID, colorDisposition(run.Disposition))
	fmt.Printf("Caller:  %s\n", run.Caller)
	fmt.Printf("Request: %q\n", run.Utterance)
	fmt.Printf("Ran:     %s to %s\n",
		run.CreatedAt.Local().Format("15:04:05"),
		run.FinishedAt.Local().Format("15:04:05"))
	fmt.Println()

	tasks, err := db.ListRunTasks(planID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		line := fmt.Sprintf("%-8s %-24s %s", task.TaskID, task.Target, task.Status)
		if task.Propagated {
			line += " (upstream failure)"
		} else if task.Error != "" {
			line += ": " + task.Error
		}
		fmt.Println(line)
	}

	confirmations, err := db.ListConfirmations(planID)
	if err != nil {
		return err
	}
	for _, c := range confirmations {
		outcome := c.Resolution
		if c.TimedOut {
			outcome += " (timed out)"
		}
		fmt.Printf("\nConfirmation on %s: %q had %d matches, resolved %s\n",
			c.TaskID, c.Reference, c.Candidates, outcome)
	}
	return nil
}

func colorDisposition(d models.Disposition) string {
	switch d {
	case models.DispositionComplete:
		return color.GreenString(string(d))
	case models.DispositionPartial:
		return color.YellowString(string(d))
	case models.DispositionCancelled, models.DispositionTimedOut:
		return color.MagentaString(string(d))
	default:
		return color.RedString(string(d))
	}
}
