package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ghclient "codebrew/internal/github"
	"codebrew/internal/notify"
	"codebrew/internal/review"
	"codebrew/internal/store"
)

func NewPRCmd() *cobra.Command {
	var repo string
	var base string
	var notifyTo string
	var dryRun bool
	var schemaName string

	cmd := &cobra.Command{
		Use:   "pr [record.json]...",
		Short: "Open pull requests from saved suggestions",
		Long:  "Open one pull request per saved suggestion. Without arguments every record in the suggestions directory is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			records, err := app.Records()
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				if paths, err = records.List(); err != nil {
					return err
				}
			}
			if len(paths) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No suggestions found in "+records.Dir()))
				return nil
			}

			schema, err := app.Schema(schemaName)
			if err != nil {
				return err
			}
			gh, err := app.GitHub()
			if err != nil {
				return err
			}

			var failed int
			for _, path := range paths {
				s, err := records.Load(path)
				if err == nil {
					s, err = review.ValidateSuggestion(s, schema)
				}
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), renderFailure(path, err))
					failed++
					continue
				}

				req := ghclient.RequestFor(s, repo, base)
				if req.Repo == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), renderFailure(path, fmt.Errorf("no repository; pass --repo")))
					failed++
					continue
				}
				if dryRun {
					fmt.Fprintf(out, "%s %s %s -> %s\n", labelStyle.Render("would open"), req.Repo, req.FilePath, req.CommitMessage)
					continue
				}

				res, err := gh.CreateSuggestionPR(ctx, req)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), renderFailure(path, err))
					failed++
					continue
				}
				if res.AlreadyExists {
					fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("branch %s already exists, skipped", res.Branch)))
					continue
				}
				fmt.Fprintln(out, renderOK(fmt.Sprintf("#%d %s", res.Number, res.URL)))

				if s.RepoName == "" {
					s.RepoName = req.Repo
				}
				if db, err := app.Analytics(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), renderFailure("analytics", err))
				} else if err := db.Append(store.EntryFor(s, app.Config.Store.User, time.Now())); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), renderFailure("analytics", err))
				}
				if notifyTo != "" {
					if _, err := app.Mailer().Send(ctx, notify.SuggestionMessage(notifyTo, s, res.URL)); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), renderFailure("notify", err))
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d suggestion(s) failed", failed, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Target repository (owner/repo), overrides the record")
	cmd.Flags().StringVar(&base, "base", "", "Base branch (default: repository default branch)")
	cmd.Flags().StringVar(&notifyTo, "notify", "", "Email address to notify for each opened pull request")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be opened")
	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema the records are checked against: minimal or extended")
	return cmd
}
