package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codebrew/internal/notify"
)

func NewNotifyCmd() *cobra.Command {
	var msg notify.Message

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send an email through the configured SMTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			status, err := app.Mailer().Send(cmd.Context(), msg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderOK(status.Message))
			return nil
		},
	}

	cmd.Flags().StringVar(&msg.To, "to", "", "Recipient")
	cmd.Flags().StringVar(&msg.Subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&msg.Body, "message", "", "Body")
	cmd.Flags().BoolVar(&msg.IsHTML, "html", false, "Send the body as HTML")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
