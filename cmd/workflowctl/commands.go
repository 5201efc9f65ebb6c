// cmd/workflowctl/commands.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"admissions-workflow/internal/models"
	"admissions-workflow/internal/notify"
	"admissions-workflow/internal/onboarding"
	"admissions-workflow/internal/repository"
	"admissions-workflow/internal/workflow"
	"admissions-workflow/pkg/registry"
)

const defaultDeadLetterKey = "workflow:notifications:dead"

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Operate the admissions workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "output JSON")

	root.AddCommand(
		migrateCmd(open),
		statusesCmd(),
		historyCmd(open),
		verifyCmd(open),
		readinessCmd(open),
		deadLettersCmd(open),
		workersCmd(),
	)
	return root
}

// withEnv opens the environment for the duration of run.
func withEnv(cmd *cobra.Command, open opener, run func(e *env) error) error {
	e, err := open(cmd.Context())
	if err != nil {
		return err
	}
	if e.close != nil {
		defer e.close()
	}
	if e.out == nil {
		e.out = cmd.OutOrStdout()
	}
	return run(e)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(e *env, v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(e *env) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(e.out)
	return tw
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(e *env) error {
				applied, err := repository.Migrate(cmd.Context(), e.db)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(e.out, "schema is up to date")
					return nil
				}
				for _, v := range applied {
					fmt.Fprintln(e.out, "applied", v)
				}
				return nil
			})
		},
	}
}

func statusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "Print the transition table",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := &env{out: cmd.OutOrStdout()}
			entries := workflow.Describe()
			if wantJSON(cmd) {
				return printJSON(e, entries)
			}

			header := table.Row{"Status", "Label", "Terminal"}
			for _, rt := range models.AllRecordTypes() {
				header = append(header, "Next ("+string(rt)+")")
			}
			tw := newTable(e)
			tw.AppendHeader(header)
			for _, entry := range entries {
				row := table.Row{entry.Status, entry.Label, entry.Terminal}
				for _, rt := range models.AllRecordTypes() {
					row = append(row, joinStatuses(entry.Next[rt]))
				}
				tw.AppendRow(row)
			}
			tw.Render()
			return nil
		},
	}
}

func historyCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history <application-id>",
		Short: "Print the audit history of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(e *env) error {
				events, err := workflow.NewReader(repository.New(e.db)).History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				chainErr := workflow.VerifyChain(events)
				if wantJSON(cmd) {
					out := map[string]any{"events": events, "chain_valid": chainErr == nil}
					if chainErr != nil {
						out["chain_error"] = chainErr.Error()
					}
					return printJSON(e, out)
				}

				tw := newTable(e)
				tw.AppendHeader(table.Row{"Seq", "From", "To", "Actor", "Role", "Reason", "At"})
				for _, ev := range events {
					from := "-"
					if ev.FromState != nil {
						from = string(*ev.FromState)
					}
					tw.AppendRow(table.Row{ev.Seq, from, ev.ToState, ev.ActorID, ev.ActorRole, ev.Reason,
						ev.CreatedAt.Format("2006-01-02 15:04:05")})
				}
				tw.Render()
				if chainErr != nil {
					fmt.Fprintln(e.out, "chain: broken:", chainErr)
				} else {
					fmt.Fprintln(e.out, "chain: ok")
				}
				return nil
			})
		},
	}
}

func verifyCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <application-id>",
		Short: "Fold the audit history and compare it with the cached status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(e *env) error {
				status, err := workflow.NewReader(repository.New(e.db)).Reconcile(cmd.Context(), args[0])
				var drift *workflow.DriftError
				switch {
				case errors.As(err, &drift):
					fmt.Fprintf(e.out, "%s: DRIFT cached=%s history=%s\n", args[0], drift.Cached, drift.Derived)
					return err
				case err != nil:
					return err
				}
				fmt.Fprintf(e.out, "%s: ok (%s)\n", args[0], status)
				return nil
			})
		},
	}
}

func readinessCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "readiness <subject-id>",
		Short: "Show the onboarding checklist verdict for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(e *env) error {
				gate := onboarding.NewGate(repository.New(e.db), e.log)
				readiness, err := gate.IsReady(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(e, readiness)
				}

				fmt.Fprintf(e.out, "subject %s ready: %t\n", readiness.SubjectID, readiness.Ready)
				if len(readiness.Outstanding) == 0 {
					return nil
				}
				tw := newTable(e)
				tw.AppendHeader(table.Row{"Item", "Document", "Uploaded"})
				for _, item := range readiness.Outstanding {
					tw.AppendRow(table.Row{item.ItemID, item.Label, item.Uploaded})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func deadLettersCmd(open opener) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List notifications that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(e *env) error {
				key := defaultDeadLetterKey
				if e.cfg != nil && e.cfg.Notifications.DeadLetterKey != "" {
					key = e.cfg.Notifications.DeadLetterKey
				}
				letters, err := notify.NewDeadLetters(e.redis, key).List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(e, letters)
				}

				tw := newTable(e)
				tw.AppendHeader(table.Row{"ID", "Application", "Status", "Channel", "Recipient", "Attempts", "Last Error"})
				for _, n := range letters {
					tw.AppendRow(table.Row{n.ID, n.ApplicationID, n.Status, n.Channel, n.Recipient, n.Attempts, n.LastError})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "maximum entries to show (0 for all)")
	return cmd
}

func workersCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Describe the job types the workflow server handles",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := &env{out: cmd.OutOrStdout()}
			reg := registry.Default()
			if file != "" {
				loaded, err := registry.LoadRegistry(file)
				if err != nil {
					return err
				}
				reg = loaded
			}
			if wantJSON(cmd) {
				return printJSON(e, reg)
			}

			tw := newTable(e)
			tw.AppendHeader(table.Row{"Task Type", "Timeout", "Error Codes"})
			for _, a := range reg.Activities {
				retrying := make([]string, len(a.ErrorCodes))
				for i, code := range a.ErrorCodes {
					retrying[i] = code
					if n := registry.Retries(code); n > 0 {
						retrying[i] = fmt.Sprintf("%s (x%d)", code, n)
					}
				}
				tw.AppendRow(table.Row{a.TaskType, a.Timeout, strings.Join(retrying, ", ")})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read the registry from a JSON export instead")
	return cmd
}

func joinStatuses(s []models.Status) string {
	parts := make([]string, len(s))
	for i, st := range s {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}
