package cli

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"codebrew/internal/handlers"
	"codebrew/internal/scan"
	"codebrew/internal/server"
	"codebrew/internal/webhook"
)

func NewServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and GitHub webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cfg := app.Config

			if port != "" {
				cfg.Server.Port = port
			}

			analyzer, err := app.Analyzer(ctx)
			if err != nil {
				return err
			}
			sources, err := app.Sources()
			if err != nil {
				return err
			}
			records, err := app.Records()
			if err != nil {
				return err
			}
			analytics, err := app.Analytics()
			if err != nil {
				return err
			}
			gh, err := app.GitHub()
			if err != nil {
				return err
			}
			schema, err := app.Schema("")
			if err != nil {
				return err
			}

			scans := scan.NewQueue(
				scan.NewService(sources, analyzer, records, schema, cfg.Review.Extension),
				scan.QueueConfig{QueueSize: cfg.Server.QueueSize, Workers: cfg.Server.Workers, Retention: cfg.Server.JobRetention},
			)
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+time.Second)
				defer cancel()
				if err := scans.Stop(stopCtx); err != nil {
					log.Printf("Scan queue did not stop cleanly: %v", err)
				}
			}()

			h := handlers.NewHandler(handlers.Deps{
				Analyzer:      analyzer,
				Sources:       sources,
				Scans:         scans,
				PullRequests:  gh,
				Notifier:      app.Mailer(),
				Records:       records,
				Analytics:     analytics,
				Webhooks:      webhook.NewProcessor(scans, cfg.Review.Extension),
				WebhookSecret: cfg.Server.WebhookSecret,
				Schema:        string(schema.Version),
				User:          cfg.Store.User,
			})

			srv := server.NewServer(cfg.Server)
			h.Register(srv.Router())

			log.Printf("Starting codebrew on port %s (provider %s, schema %s)", cfg.Server.Port, cfg.LLM.Provider, schema.Version)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default from config)")
	return cmd
}
