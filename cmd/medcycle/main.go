package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "medcycle",
		Short:         "Medical records API with role-based access control and audit trail",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedAdminCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create schemas, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			username, _ := cmd.Flags().GetString("username")
			fullName, _ := cmd.Flags().GetString("full-name")
			password := os.Getenv("ADMIN_PASSWORD")
			if email == "" || username == "" || password == "" {
				return errMissingAdminInput
			}
			return runSeedAdmin(cmd.Context(), email, username, fullName, password)
		},
	}
	cmd.Flags().String("email", "", "Administrator email")
	cmd.Flags().String("username", "admin", "Administrator username")
	cmd.Flags().String("full-name", "System Administrator", "Administrator display name")
	return cmd
}
