package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quartermaster/internal/events"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

var runCmd = &cobra.Command{
	Use:   "run <request...>",
	Short: "Run a single request and stream its progress",
	Long: `Run plans a single natural-language request, executes it, and streams
progress to the terminal. If the plan pauses on an ambiguous item reference,
run prompts on stdin for a reply (newest / oldest / all / cancel).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(strings.Join(args, " "))
	},
}

func runOnce(utterance string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	run, err := orch.HandleRequest(ctx, flagCaller, utterance)
	if err != nil {
		return err
	}
	planID := run.Plan().ID

	stdin := bufio.NewReader(os.Stdin)
	for ev := range orch.Events() {
		if ev.PlanID != planID {
			continue
		}
		printEvent(ev)

		switch ev.Type {
		case events.EventConfirmationRequested:
			reply, rerr := stdin.ReadString('\n')
			if rerr != nil {
				orch.CancelPlan(flagCaller, planID)
				break
			}
			if serr := orch.SubmitReply(flagCaller, planID, ev.SessionID, strings.TrimSpace(reply)); serr != nil {
				printStatus("✗", serr.Error(), color.FgRed)
			}
		case events.EventPlanCompleted, events.EventPlanCancelled, events.EventPlanTimedOut:
			return printOutcome(run.Outcome())
		}
	}
	return printOutcome(run.Outcome())
}

// printEvent renders a single progress event as a status line.
func printEvent(ev events.Event) {
	switch ev.Type {
	case events.EventPlanStarted:
		printStatus("→", fmt.Sprintf("Plan %s started", ev.PlanID), color.FgCyan)
	case events.EventTaskStarted:
		printStatus("→", fmt.Sprintf("Task %s running", ev.TaskID), color.FgCyan)
	case events.EventTaskSucceeded:
		printStatus("✓", fmt.Sprintf("Task %s succeeded", ev.TaskID), color.FgGreen)
	case events.EventTaskFailed:
		printStatus("✗", fmt.Sprintf("Task %s failed: %s", ev.TaskID, ev.Message), color.FgRed)
	case events.EventTaskBlocked:
		printStatus("⚠", fmt.Sprintf("Task %s blocked by an upstream failure", ev.TaskID), color.FgYellow)
	case events.EventConfirmationRequested:
		fmt.Println()
		fmt.Println(ev.PromptText)
		fmt.Print("> ")
	case events.EventConfirmationResolved:
		printStatus("✓", fmt.Sprintf("Confirmation resolved: %s", ev.Message), color.FgGreen)
	case events.EventPlanCancelled:
		printStatus("✗", "Plan cancelled", color.FgRed)
	case events.EventPlanTimedOut:
		printStatus("⚠", "Confirmation timed out", color.FgYellow)
	}
}

func printOutcome(outcome models.Outcome) error {
	fmt.Println()
	switch outcome.Disposition {
	case models.DispositionComplete:
		fmt.Printf("%s All %d tasks completed.\n", color.GreenString("✓"), len(outcome.Succeeded))
		return nil
	case models.DispositionPartial:
		fmt.Printf("%s %d tasks succeeded, %d failed, %d blocked.\n",
			color.YellowString("⚠"), len(outcome.Succeeded), len(outcome.Failed), len(outcome.Propagated))
		return fmt.Errorf("plan finished partially")
	case models.DispositionCancelled:
		fmt.Printf("%s Plan cancelled.\n", color.RedString("✗"))
		return nil
	default:
		fmt.Printf("%s Plan did not complete.\n", color.RedString("✗"))
		return fmt.Errorf("plan %s", outcome.Disposition)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
