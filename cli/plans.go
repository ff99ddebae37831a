package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/compozy/plansync/cli/helpers"
	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/events"
	"github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/logger"
)

// deadlineDateHour is the local hour assigned to date-only deadlines.
const deadlineDateHour = 17

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [task]",
		Short: "Decompose a task and schedule its subtasks",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSubmit,
	}
	cmd.Flags().String("user", "", "User id that owns the workflow")
	cmd.Flags().String("task", "", "Task to decompose (alternative to the positional argument)")
	cmd.Flags().String("context", "", "Additional context for the planner")
	cmd.Flags().String("deadline", "", "Deadline as RFC3339 or YYYY-MM-DD")
	cmd.Flags().String("timezone", "", "IANA timezone for scheduling")
	cmd.Flags().Int("max-steps", 0, "Maximum number of subtasks")
	cmd.Flags().String("calendar", "", "Target calendar id")
	cmd.Flags().Bool("async", false, "Queue the run and return immediately")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	req, err := requestFromFlags(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	async, _ := cmd.Flags().GetBool("async")
	if async {
		inst, err := a.orchestrator.Create(ctx, req)
		if err != nil {
			return err
		}
		if err := a.dispatcher.Dispatch(ctx, inst); err != nil {
			return fmt.Errorf("workflow %s was recorded but not dispatched: %w", inst.WorkflowID, err)
		}
		return helpers.WriteInstance(cmd.OutOrStdout(), inst, format)
	}
	inst, runErr := a.orchestrator.Start(ctx, req)
	if inst == nil {
		return runErr
	}
	if err := helpers.WriteInstance(cmd.OutOrStdout(), inst, format); err != nil {
		return err
	}
	return runErr
}

func requestFromFlags(cmd *cobra.Command, args []string) (*workflow.Request, error) {
	flags := cmd.Flags()
	userID, _ := flags.GetString("user")
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	task, _ := flags.GetString("task")
	if len(args) > 0 {
		task = args[0]
	}
	req := &workflow.Request{UserID: userID, Task: task}
	req.Context, _ = flags.GetString("context")
	req.Timezone, _ = flags.GetString("timezone")
	req.CalendarID, _ = flags.GetString("calendar")
	if flags.Changed("max-steps") {
		steps, _ := flags.GetInt("max-steps")
		req.MaxSteps = &steps
	}
	if raw, _ := flags.GetString("deadline"); raw != "" {
		deadline, err := parseDeadline(raw, req.Timezone)
		if err != nil {
			return nil, err
		}
		req.Deadline = &deadline
	}
	return req, nil
}

// parseDeadline accepts RFC3339 timestamps or bare dates. A bare date is
// read as the afternoon of that day in tz.
func parseDeadline(raw, tz string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, helpers.NewCliError("INVALID_FLAG", "unknown timezone", tz)
		}
		loc = l
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, helpers.NewCliError("INVALID_FLAG", "deadline must be RFC3339 or YYYY-MM-DD", raw)
	}
	return d.Add(deadlineDateHour * time.Hour), nil
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show a workflow record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			if err := requireUser(userID); err != nil {
				return err
			}
			id, err := parseWorkflowID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			inst, err := a.orchestrator.GetStatus(ctx, id, userID)
			if err != nil {
				return err
			}
			return helpers.WriteInstance(cmd.OutOrStdout(), inst, format)
		},
	}
	cmd.Flags().String("user", "", "User id that owns the workflow")
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workflows of a user, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			if err := requireUser(userID); err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			items, err := a.orchestrator.List(ctx, userID, limit)
			if err != nil {
				return err
			}
			return helpers.WriteInstances(cmd.OutOrStdout(), items, format)
		},
	}
	cmd.Flags().String("user", "", "User id that owns the workflows")
	cmd.Flags().Int("limit", workflow.DefaultListLimit, "Maximum number of records")
	return cmd
}

func retryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <workflow-id>",
		Short: "Retry a failed workflow without duplicating synced events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			if err := requireUser(userID); err != nil {
				return err
			}
			id, err := parseWorkflowID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			attempt, err := a.orchestrator.Retry(ctx, id, userID)
			if err != nil {
				return err
			}
			if async, _ := cmd.Flags().GetBool("async"); async || attempt.Status.IsTerminal() {
				if !attempt.Status.IsTerminal() {
					if err := a.dispatcher.Dispatch(ctx, attempt); err != nil {
						return fmt.Errorf("retry %s was recorded but not dispatched: %w", attempt.WorkflowID, err)
					}
				}
				return helpers.WriteInstance(cmd.OutOrStdout(), attempt, format)
			}
			final, runErr := a.orchestrator.Resume(ctx, attempt.WorkflowID, userID)
			if final == nil {
				return runErr
			}
			if err := helpers.WriteInstance(cmd.OutOrStdout(), final, format); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().String("user", "", "User id that owns the workflow")
	cmd.Flags().Bool("async", false, "Queue the retry and return immediately")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream status changes of a user's workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			if err := requireUser(userID); err != nil {
				return err
			}
			if !cfg.Redis.Enabled() {
				return helpers.NewCliError("REDIS_REQUIRED", "status notifications need redis.addr to be configured")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			stream, closeSub, err := events.Subscribe(ctx, a.pubsub, userID)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeSub(); err != nil {
					logger.FromContext(ctx).Warn("Failed to close subscription", "error", err)
				}
			}()
			out := cmd.OutOrStdout()
			for ev := range stream {
				if format == helpers.OutputFormatJSON {
					if err := helpers.WriteJSON(out, ev); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s  %s  %s\n", ev.At.Format(time.RFC3339), ev.WorkflowID, ev.Status)
			}
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id to watch")
	return cmd
}

func parseWorkflowID(raw string) (core.ID, error) {
	id, err := core.ParseID(raw)
	if err != nil {
		return "", helpers.NewCliError("INVALID_ID", "workflow id is not valid", raw)
	}
	return id, nil
}
