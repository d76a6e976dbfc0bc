package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/cli/config"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdResolve() *cli.Command {
	var (
		githubCfg   config.GitHub
		registryCfg config.Registry
		asJSON      bool
	)

	flags := append(githubCfg.Flags(), registryCfg.Flags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "json",
		Usage:       "Print result as JSON",
		Destination: &asJSON,
	})

	return &cli.Command{
		Name:    "resolve",
		Aliases: []string{"r"},
		Usage:   "Resolve current releases once and print them",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			fetcher, err := githubCfg.NewFetcher()
			if err != nil {
				return goerr.Wrap(err, "failed to create release fetcher")
			}

			resolverUC, err := registryCfg.NewResolver(fetcher)
			if err != nil {
				return goerr.Wrap(err, "failed to create resolver")
			}

			if registryCfg.ResolveTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, registryCfg.ResolveTimeout)
				defer cancel()
			}

			result, err := resolverUC.ResolveAll(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve releases")
			}

			if asJSON {
				return renderJSON(c.Root().Writer, result)
			}
			renderTable(c.Root().Writer, resolverUC.Registry(), result)
			return nil
		},
	}
}

type resolveOutput struct {
	ResolvedAt time.Time            `json:"resolved_at"`
	Releases   []*model.ReleaseView `json:"releases"`
	Missing    []string             `json:"missing"`
}

func renderJSON(w io.Writer, result *model.ResolutionResult) error {
	views, missing := result.Views()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&resolveOutput{
		ResolvedAt: result.ResolvedAt,
		Releases:   views,
		Missing:    missing,
	}); err != nil {
		return goerr.Wrap(err, "failed to encode resolution result")
	}
	return nil
}

// renderTable prints one row per registered product. Products without a release are
// highlighted, including those left out of result by the failure policy.
func renderTable(w io.Writer, reg *model.Registry, result *model.ResolutionResult) {
	unavailable := color.New(color.FgYellow).Sprint("unavailable")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Product", "Version", "Published", "Changelog"})

	for _, p := range reg.Products() {
		release, _ := result.Get(p.Name)
		if release == nil {
			t.AppendRow(table.Row{p.Name, unavailable, "-", "-"})
			continue
		}
		view := model.NewReleaseView(p, release)
		t.AppendRow(table.Row{
			view.Name,
			color.New(color.FgGreen).Sprint(view.Version),
			view.PublishedAt.Format(time.DateOnly),
			view.ChangelogURL,
		})
	}

	t.Render()
}
