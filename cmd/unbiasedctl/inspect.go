package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

type sourceGetter interface {
	GetByDomain(ctx context.Context, domain string) (*models.Source, error)
}

type articleGetter interface {
	GetByURL(ctx context.Context, url string) (*models.Article, error)
}

func sourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source DOMAIN|FEED_URL",
		Short: "Show one persisted source",
		Long:  "Looks a source up by its domain. A feed URL is reduced to its domain first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			asJSON, _ := cmd.Flags().GetBool("json")
			return showSource(cmd.Context(), cmd.OutOrStdout(), a.Sources, args[0], asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func articleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article URL",
		Short: "Show one persisted article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			asJSON, _ := cmd.Flags().GetBool("json")
			return showArticle(cmd.Context(), cmd.OutOrStdout(), a.Articles, args[0], asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

// sourceKey turns a bare domain or a feed URL into the stored domain key.
func sourceKey(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "://") {
		return feeds.Domain(arg)
	}
	if arg == "" {
		return "", errors.New("empty domain")
	}
	return strings.TrimPrefix(strings.ToLower(arg), "www."), nil
}

func showSource(ctx context.Context, w io.Writer, store sourceGetter, arg string, asJSON bool) error {
	domain, err := sourceKey(arg)
	if err != nil {
		return err
	}
	src, err := store.GetByDomain(ctx, domain)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("no source with domain %s", domain)
	}
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, src)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", src.ID)
	fmt.Fprintf(tw, "Name\t%s\n", src.Name)
	fmt.Fprintf(tw, "Domain\t%s\n", src.Domain)
	fmt.Fprintf(tw, "Feed\t%s\n", src.RSSURL)
	fmt.Fprintf(tw, "Bias\t%s\n", src.BiasRating.Label())
	fmt.Fprintf(tw, "Reliability\t%s\n", src.Reliability)
	fmt.Fprintf(tw, "Updated\t%s\n", src.UpdatedAt.Local().Format(time.DateTime))
	return tw.Flush()
}

func showArticle(ctx context.Context, w io.Writer, store articleGetter, url string, asJSON bool) error {
	url = strings.TrimSpace(url)
	a, err := store.GetByURL(ctx, url)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("no article with url %s", url)
	}
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, a)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", a.ID)
	fmt.Fprintf(tw, "Title\t%s\n", a.Title)
	fmt.Fprintf(tw, "Source\t%s (%s)\n", a.SourceName, a.BiasRating)
	fmt.Fprintf(tw, "Published\t%s\n", a.PublishedAt.Local().Format(time.DateTime))
	if a.ImageURL != "" {
		fmt.Fprintf(tw, "Image\t%s\n", a.ImageURL)
	}
	if len(a.Keywords) > 0 {
		fmt.Fprintf(tw, "Keywords\t%s\n", strings.Join(a.Keywords, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if a.Description != "" {
		fmt.Fprintf(w, "\n%s\n", a.Description)
	}
	return nil
}
