package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Saul-Punybz/unbiased/internal/app"
	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/ingest"
)

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List sources",
		Long:  "Lists persisted sources, or with --registry the configured feed registry without touching the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if reg, _ := cmd.Flags().GetBool("registry"); reg {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				list, err := app.Registry(cfg.Ingest).Sources(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tBIAS\tRELIABILITY\tFEED")
				for _, d := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.BiasRating, feeds.ReliabilityFor(d.BiasRating), d.FeedURL)
				}
				return tw.Flush()
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Sources.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDOMAIN\tBIAS\tRELIABILITY\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Domain, s.BiasRating, s.Reliability, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("registry", false, "List the feed registry instead of the database")
	return cmd
}

func checkFeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-feeds",
		Short: "Fetch every feed and report what an update would ingest",
		Long:  "Fetches, parses and filters every registered feed without writing to the database or run history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := app.FeedPipeline(cfg.Ingest)
			if err != nil {
				return err
			}

			res, err := p.DryRun(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printDryRun(cmd.OutOrStdout(), res)
			if len(res.Errors) == res.Sources {
				return errors.New("every feed failed")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the full result, including articles, as JSON")
	return cmd
}

func printDryRun(w io.Writer, res *ingest.DryRunResult) {
	perSource := make(map[string]int)
	for _, a := range res.Recent {
		perSource[a.Source.Name]++
	}

	fmt.Fprintf(w, "%d sources, %d items fetched, %d published since %s (%s)\n",
		res.Sources, res.Fetched, len(res.Recent), res.Since.Format("2006-01-02 15:04 MST"), res.Duration.Round(time.Millisecond))

	names := make([]string, 0, len(perSource))
	for name := range perSource {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tRECENT")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, perSource[name])
	}
	tw.Flush()

	for _, fe := range res.Errors {
		fmt.Fprintf(w, "FAILED %s\n", fe)
	}
}

func hashTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Read an admin token from stdin and print its ADMIN_TOKEN_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			token := strings.TrimSpace(line)
			if token == "" {
				return errors.New("empty token")
			}
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
