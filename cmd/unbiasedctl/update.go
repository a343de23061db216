package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Saul-Punybz/unbiased/internal/ingest"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

func updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run the ingestion pipeline now",
		Long:  "Starts a manual update. It is subject to the same rate limit as the API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduled, _ := cmd.Flags().GetBool("scheduled")
			typ := models.UpdateManual
			if scheduled {
				typ = models.UpdateScheduled
			}

			res, err := a.Pipeline.Run(cmd.Context(), typ)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			}

			switch res.Status {
			case ingest.RunRejected:
				return limitError(res.Limit)
			case ingest.RunBusy:
				return errors.New("an update is already in progress")
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); !asJSON {
				printRunResult(out, res)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the run result as JSON")
	cmd.Flags().Bool("scheduled", false, "Record the run as scheduled instead of manual")
	return cmd
}

func limitError(st *ingest.LimitStatus) error {
	if st == nil || st.AllowUpdateNext == nil {
		return errors.New("update limit reached")
	}
	return fmt.Errorf("update limit reached (%d of %d); next update allowed at %s",
		st.UpdatesInPeriod, st.UpdateLimit, st.AllowUpdateNext.Local().Format(time.RFC1123))
}

func printRunResult(w io.Writer, res *ingest.RunResult) {
	fmt.Fprintf(w, "run %s completed in %s\n", res.HistoryID, time.Duration(res.DurationMs)*time.Millisecond)
	fmt.Fprintf(w, "  sources:  %d total, %d created, %d updated, %d failed\n",
		res.SourcesTotal, res.SourcesCreated, res.SourcesUpdated, res.SourcesFailed)
	fmt.Fprintf(w, "  articles: %d fetched, %d recent, %d created, %d updated, %d skipped\n",
		res.ArticlesFetched, res.ArticlesRecent, res.ArticlesCreated, res.ArticlesUpdated, res.ArticlesSkipped)
	if res.ImagesResolved > 0 {
		fmt.Fprintf(w, "  images:   %d resolved\n", res.ImagesResolved)
	}
	for _, fe := range res.FeedErrors {
		fmt.Fprintf(w, "  error:    %s\n", fe)
	}
}

func limitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limit",
		Short: "Show whether an update is currently allowed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Governor.Check(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "updates in window: %d of %d (window %s)\n",
				st.UpdatesInPeriod, st.UpdateLimit, a.Governor.Window)
			if st.Allowed {
				fmt.Fprintln(out, "an update is allowed now")
				return nil
			}
			if st.AllowUpdateNext != nil {
				fmt.Fprintf(out, "next update allowed at %s (in %s)\n",
					st.AllowUpdateNext.Local().Format(time.RFC1123), st.RetryAfter(time.Now()))
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := a.History.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			printHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to show")
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func printHistory(w io.Writer, runs []models.UpdateHistory) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tREQUESTED\tSTATUS\tDURATION\tCREATED\tUPDATED\tERRORS")
	for _, r := range runs {
		dur := "-"
		if r.DurationMs != nil {
			dur = (time.Duration(*r.DurationMs) * time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.UpdateType, r.RequestedAt.Local().Format(time.DateTime), r.Status, dur,
			r.ArticlesCreated, r.ArticlesUpdated, r.ErrorCount)
	}
	tw.Flush()
}

func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive RUN_ID",
		Short: "Print the archived report of a completed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.Storage.Configured() {
				return errors.New("S3_ENDPOINT is not configured")
			}
			run, err := a.History.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if run.Status != models.StatusCompleted {
				return fmt.Errorf("run %s is %s; only completed runs are archived", id, run.Status)
			}
			data, err := a.Storage.FetchRun(cmd.Context(), id.String(), run.StartedAt)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
