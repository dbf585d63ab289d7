/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/darigo/apiserver/config"
	"github.com/darigo/apiserver/internal/logging"
	"github.com/darigo/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

// adminCmd groups operator commands for administrator accounts.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator or promote an existing account",
	Long: `Creates an administrator account in the configured data store. When an
account with the given email already exists it is promoted and reactivated;
its password is left unchanged.

	darigo admin create --email ops@darigo.iq --password '...' --name Operator
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(adminEmail)
		if email == "" {
			return errors.New("--email is required")
		}
		if len(adminPassword) < 8 {
			return errors.New("--password must be at least 8 characters")
		}

		cfg := config.LoadConfig()
		logger := logging.Must(cfg.Log.Level, cfg.Log.Format)
		defer func() { _ = logger.Sync() }()

		user, created, err := server.ProvisionAdmin(backgroundContext(cmd), cfg, logger, strings.TrimSpace(adminName), email, adminPassword)
		if err != nil {
			return fmt.Errorf("provision admin: %w", err)
		}
		logger.Info("admin provisioned", zap.String("user_id", user.ID), zap.String("email", user.Email), zap.Bool("created", created))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name of a new account")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "account email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "password of a new account")
}
