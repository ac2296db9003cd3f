package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codebrew/internal/review"
)

func NewAnalyzeCmd() *cobra.Command {
	var schemaName string
	var repo string
	var asJSON bool
	var save bool
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "analyze <file|github-blob-url>",
		Short: "Suggest the single most impactful change in one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			schema, err := app.Schema(schemaName)
			if err != nil {
				return err
			}
			sources, err := app.Sources()
			if err != nil {
				return err
			}
			artifact, err := sources.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			if repo != "" {
				artifact.RepoName = repo
			}

			if rulesDir != "" {
				if err := app.AddGuidelines(ctx, rulesDir); err != nil {
					return err
				}
			}
			analyzer, err := app.Analyzer(ctx)
			if err != nil {
				return err
			}
			result, err := analyzer.Analyze(ctx, artifact, schema)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), renderFailure(artifact.Label(), err))
				return err
			}

			var record string
			if save {
				records, err := app.Records()
				if err != nil {
					return err
				}
				if record, err = records.Save(result.Suggestion); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					*review.Result
					Record string `json:"record,omitempty"`
				}{result, record})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSuggestion(result.Suggestion))
			if record != "" {
				fmt.Fprintln(out, renderOK("saved "+record))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema version: minimal or extended")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository (owner/repo) to record on the suggestion")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&save, "save", true, "Save the suggestion for the pr command")
	cmd.Flags().StringVar(&rulesDir, "guidelines", "", "Repository root whose coding rules are added to the prompt")
	return cmd
}

func NewBatchCmd() *cobra.Command {
	var schemaName string
	var mode string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batch <file|url>...",
		Short: "Analyze several files in one prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			batchMode, ok := review.ParseBatchMode(mode)
			if !ok {
				return fmt.Errorf("--mode must be per_file or single_best, got %q", mode)
			}
			schema, err := app.Schema(schemaName)
			if err != nil {
				return err
			}
			sources, err := app.Sources()
			if err != nil {
				return err
			}

			artifacts := make([]review.SourceArtifact, 0, len(args))
			for _, id := range args {
				a, err := sources.Fetch(ctx, id)
				if err != nil {
					return err
				}
				artifacts = append(artifacts, a)
			}

			analyzer, err := app.Analyzer(ctx)
			if err != nil {
				return err
			}
			result, err := analyzer.AnalyzeBatch(ctx, artifacts, batchMode, schema)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), renderFailure(fmt.Sprintf("batch of %d files", len(artifacts)), err))
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			if result.Best != nil {
				fmt.Fprintln(out, renderSuggestion(*result.Best))
				return nil
			}
			for _, e := range result.Set.Entries {
				fmt.Fprintln(out, renderOK(e.File))
				fmt.Fprintln(out, renderSuggestion(e.Suggestion))
				fmt.Fprintln(out)
			}
			for _, f := range result.Set.Failures {
				fmt.Fprintln(out, renderFailure(f.File, f.Err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema version: minimal or extended")
	cmd.Flags().StringVar(&mode, "mode", string(review.BatchPerFile), "per_file or single_best")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
