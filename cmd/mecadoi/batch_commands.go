package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mecadoi/internal/config"
	"mecadoi/internal/store"
	"mecadoi/internal/workflow"
)

// errArchivesFailed makes the process exit non-zero after the summary was
// printed.
var errArchivesFailed = errors.New("one or more archives failed; see the summary above")

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Parse, deposit and manage batches of MECA archives",
	}

	batchCmd.AddCommand(newBatchParseCommand(ctx))
	batchCmd.AddCommand(newBatchDepositCommand(ctx))
	batchCmd.AddCommand(newBatchPruneCommand(ctx))
	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchShowCommand(ctx))
	batchCmd.AddCommand(newBatchResetCommand(ctx))
	batchCmd.AddCommand(newBatchAcknowledgeCommand(ctx))

	return batchCmd
}

func newBatchParseCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "parse INPUT_DIR",
		Short: "Move INPUT_DIR into the output directory and register its archives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputDir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			out, err := config.ExpandPath(outputDir)
			if err != nil {
				return err
			}

			s, err := ctx.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()
			runner, err := s.runner()
			if err != nil {
				return err
			}

			runID := runner.NewRunID()
			_, files, err := workflow.StageInput(inputDir, out, runID)
			if err != nil {
				return err
			}
			report, err := runner.Parse(cmd.Context(), runID, files)
			if report != nil {
				if werr := writeYAML(cmd, parseOutput(report)); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory receiving parsed archives and reports")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func parseOutput(report *workflow.ParseReport) map[string]any {
	out := map[string]any{"id": report.RunID}
	for key, names := range report.Grouped() {
		out[key] = names
	}
	return out
}

func newBatchDepositCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir     string
		before, after string
		dryRun        bool
		noDryRun      bool
		retryFailed   bool
		noRetryFailed bool
	)

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit the reviews of eligible archives with Crossref",
		Long: "Generates a Crossref peer review deposition for each eligible archive, submits it and " +
			"verifies that the DOIs resolve. Runs are dry by default; pass --no-dry-run to submit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noDryRun {
				dryRun = false
			}
			if noRetryFailed {
				retryFailed = false
			}
			dateRange, err := dateRangeFromFlags(after, before)
			if err != nil {
				return err
			}
			out, err := config.ExpandPath(outputDir)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateDeposit(dryRun); err != nil {
				return err
			}

			s, err := ctx.openSession(!dryRun)
			if err != nil {
				return err
			}
			defer s.Close()
			runner, err := s.runner()
			if err != nil {
				return err
			}

			summary, runErr := runner.Deposit(cmd.Context(), workflow.Options{
				Range:       dateRange,
				DryRun:      dryRun,
				RetryFailed: retryFailed,
				RunID:       runner.NewRunID(),
			})
			if summary == nil {
				return runErr
			}

			output := depositOutput(summary)
			if !dryRun {
				path, err := workflow.WriteDepositedReport(out, summary.RunID, summary.Deposited())
				if err != nil && runErr == nil {
					runErr = err
				}
				if path != "" {
					output["deposited_report"] = path
				}
			}
			if err := writeYAML(cmd, output); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return runErr
			}
			if summary.HasFailures() {
				return errArchivesFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory receiving the deposited report")
	cmd.Flags().StringVar(&before, "before", "", "Only archives received before this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&after, "after", "", "Only archives received after this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "Generate and report without submitting")
	cmd.Flags().BoolVar(&noDryRun, "no-dry-run", false, "Submit depositions to Crossref")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Retry submitted and failed depositions instead of ready archives")
	cmd.Flags().BoolVar(&noRetryFailed, "no-retry-failed", false, "Deposit ready archives (default)")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "no-dry-run")
	cmd.MarkFlagsMutuallyExclusive("retry-failed", "no-retry-failed")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func dateRangeFromFlags(after, before string) (store.Range, error) {
	var afterDay, beforeDay *time.Time
	if strings.TrimSpace(after) != "" {
		t, err := workflow.ParseDate(after)
		if err != nil {
			return store.Range{}, fmt.Errorf("--after: %w", err)
		}
		afterDay = &t
	}
	if strings.TrimSpace(before) != "" {
		t, err := workflow.ParseDate(before)
		if err != nil {
			return store.Range{}, fmt.Errorf("--before: %w", err)
		}
		beforeDay = &t
	}
	return workflow.DateRange(afterDay, beforeDay), nil
}

func depositOutput(summary *workflow.Summary) map[string]any {
	out := map[string]any{
		"id":      summary.RunID,
		"dry_run": summary.DryRun,
	}
	for key, names := range summary.Grouped() {
		out[key] = names
	}
	if summary.Interrupted {
		out["interrupted"] = true
	}
	return out
}

func newBatchPruneCommand(ctx *commandContext) *cobra.Command {
	var dryRun, noDryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archive files that were deposited or acknowledged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noDryRun {
				dryRun = false
			}
			s, err := ctx.openSession(!dryRun)
			if err != nil {
				return err
			}
			defer s.Close()
			runner, err := s.runner()
			if err != nil {
				return err
			}
			report, err := runner.Prune(cmd.Context(), dryRun)
			if report != nil {
				if werr := writeYAML(cmd, report); werr != nil && err == nil {
					err = werr
				}
				if err == nil && len(report.Failed) > 0 {
					err = errArchivesFailed
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "List the files that would be deleted")
	cmd.Flags().BoolVar(&noDryRun, "no-dry-run", false, "Delete the files")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "no-dry-run")
	return cmd
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archive records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]store.State, 0, len(states))
			for _, raw := range states {
				state, ok := store.ParseState(strings.ToUpper(strings.TrimSpace(raw)))
				if !ok {
					return fmt.Errorf("unknown state %q", raw)
				}
				filter = append(filter, state)
			}

			s, err := ctx.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			records, err := s.store.List(cmd.Context(), filter...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No archives")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.ID,
					stateLabel(rec.State, colorize),
					rec.ReceivedAt.Format("2006-01-02"),
					rec.PreprintDOI,
					truncate(rec.Title, 48),
					yesNo(rec.Acknowledged()),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Archive", "State", "Received", "Preprint DOI", "Title", "Ack"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Only list archives in these states (repeatable)")
	return cmd
}

func newBatchShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ARCHIVE",
		Short: "Show an archive record with its attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			id := workflow.ArchiveID(args[0])
			rec, err := s.store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			attempts, err := s.store.Attempts(cmd.Context(), id)
			if err != nil {
				return err
			}
			dois, err := s.store.DOIsForArchive(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fields := [][]string{
				{"Archive", rec.ID},
				{"Path", rec.Path},
				{"State", stateLabel(rec.State, colorize)},
				{"Title", rec.Title},
				{"Preprint DOI", rec.PreprintDOI},
				{"Received", formatTimestamp(&rec.ReceivedAt)},
				{"Submitted", formatTimestamp(rec.SubmittedAt)},
				{"Crossref status", rec.CrossrefStatus},
				{"Verification", rec.VerificationStatus},
				{"Acknowledged", formatTimestamp(rec.AcknowledgedAt)},
			}
			if rec.Params != nil {
				fields = append(fields, []string{"Generation nonce", rec.Params.Nonce})
			}
			if rec.LeaseOwner != "" {
				fields = append(fields, []string{"Leased by", rec.LeaseOwner + " until " + formatTimestamp(rec.LeaseExpiresAt)})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, fields, nil))

			if len(dois) > 0 {
				rows := make([][]string, 0, len(dois))
				for _, d := range dois {
					rows = append(rows, []string{d.DOI, d.Kind, d.Resource})
				}
				fmt.Fprintln(out, renderTable([]string{"DOI", "Kind", "Resource"}, rows, nil))
			}

			if len(attempts) == 0 {
				fmt.Fprintln(out, "No attempts")
				return nil
			}
			rows := make([][]string, 0, len(attempts))
			for _, a := range attempts {
				verified := ""
				if a.ExpectedDOIs > 0 {
					verified = fmt.Sprintf("%d/%d", a.MatchedDOIs, a.ExpectedDOIs)
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", a.ID),
					a.CreatedAt.Format(time.RFC3339),
					a.RunID,
					string(a.FromState) + " -> " + string(a.ToState),
					string(a.Outcome),
					verified,
					truncate(a.ErrorMessage, 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "At", "Run", "Transition", "Outcome", "DOIs", "Message"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func newBatchResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset ARCHIVE...",
		Short: "Return generation failures and pre-existing DOI archives to READY_FOR_DEPOSIT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			runID := "reset-" + time.Now().UTC().Format("20060102T150405")
			out := cmd.OutOrStdout()
			var failed []string
			for _, arg := range args {
				id := workflow.ArchiveID(arg)
				prior, err := s.store.Reset(cmd.Context(), id, runID)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", id, err)
					failed = append(failed, id)
					continue
				}
				fmt.Fprintf(out, "%s: %s -> %s\n", id, prior, store.StateReadyForDeposit)
			}
			if len(failed) > 0 {
				return fmt.Errorf("reset failed for %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func newBatchAcknowledgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "acknowledge ARCHIVE...",
		Short: "Accept an archive's failure so prune may delete it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			var failed []string
			for _, arg := range args {
				id := workflow.ArchiveID(arg)
				rec, err := s.store.Acknowledge(cmd.Context(), id)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", id, err)
					failed = append(failed, id)
					continue
				}
				fmt.Fprintf(out, "%s: acknowledged in %s\n", id, rec.State)
			}
			if len(failed) > 0 {
				return fmt.Errorf("acknowledge failed for %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}
