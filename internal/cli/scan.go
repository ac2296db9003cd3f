package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	ghclient "codebrew/internal/github"
	"codebrew/internal/scan"
	"codebrew/internal/source"
)

func NewScanCmd() *cobra.Command {
	var schemaName string
	var ext string
	var save bool
	var asJSON bool
	var useGuidelines bool
	var pick string

	cmd := &cobra.Command{
		Use:   "scan <dir|github-repo-url>",
		Short: "Analyze every matching file under a directory or repository",
		Long:  "Analyze every matching file under a directory or repository. With --pick the target is a random repository from a list file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (pick != "") {
				return fmt.Errorf("pass either a target or --pick")
			}
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var target string
			if pick != "" {
				gh, err := app.GitHub()
				if err != nil {
					return err
				}
				if target, err = ghclient.PickRepo(ctx, pick, gh, nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), labelStyle.Render("Picked")+" "+target)
			} else {
				target = args[0]
			}

			if useGuidelines && !source.IsGitHubURL(target) {
				if err := app.AddGuidelines(ctx, target); err != nil {
					return err
				}
			}
			svc, err := newScanService(cmd, app, schemaName, save)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report, err := svc.Run(ctx, scan.Request{Target: target, Extension: ext}, func(r scan.FileResult) {
				if asJSON {
					return
				}
				if r.OK() {
					fmt.Fprintln(out, renderOK(r.ID))
					fmt.Fprintln(out, renderSuggestion(*r.Suggestion))
					fmt.Fprintln(out)
					return
				}
				fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render("✗ "+r.ID+": "+r.Error))
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(out, report)
			}
			fmt.Fprintf(out, "%s %d succeeded, %d failed\n", labelStyle.Render("Scan finished:"), report.Succeeded, report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema version: minimal or extended")
	cmd.Flags().StringVar(&ext, "ext", "", "File extension to scan (default from config)")
	cmd.Flags().BoolVar(&save, "save", true, "Save suggestions for the pr command")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().StringVar(&pick, "pick", "", "Scan a random repository from this list file (one URL or owner/repo per line)")
	cmd.Flags().BoolVar(&useGuidelines, "guidelines", true, "Add the directory's coding rules (.codebrew.md, CONTRIBUTING.md, ...) to the prompt")
	return cmd
}

func newScanService(cmd *cobra.Command, app *App, schemaName string, save bool) (*scan.Service, error) {
	schema, err := app.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	sources, err := app.Sources()
	if err != nil {
		return nil, err
	}
	analyzer, err := app.Analyzer(cmd.Context())
	if err != nil {
		return nil, err
	}

	var records scan.Recorder
	if save {
		st, err := app.Records()
		if err != nil {
			return nil, err
		}
		records = st
	}
	return scan.NewService(sources, analyzer, records, schema, app.Config.Review.Extension), nil
}
