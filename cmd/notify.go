package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/constants"
	"github.com/brightfame/crewgen/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage webhook notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		testFlag, _ := cmd.Flags().GetBool("test")
		if !testFlag {
			return cmd.Help()
		}

		dir, err := workDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd, dir)
		if err != nil {
			return err
		}

		if cfg.Notifications.WebhookURL == "" {
			return fmt.Errorf("no webhook URL configured in %s ([notifications] webhook_url)", constants.ConfigFile)
		}

		event := notify.Event{
			Type:      notify.EventTest,
			Project:   cfg.Project.Name,
			Message:   "Test notification from crewgen",
			Timestamp: time.Now().UTC(),
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sending test notification to %s...\n", cfg.Notifications.WebhookURL)

		if err := notify.Send(cmd.Context(), cfg.Notifications.WebhookURL, event); err != nil {
			return fmt.Errorf("notification failed: %w", err)
		}

		fmt.Fprintln(out, "Notification sent successfully.")
		return nil
	},
}

func init() {
	notifyCmd.Flags().Bool("test", false, "Send a test notification to the webhook")
	rootCmd.AddCommand(notifyCmd)
}
