// Command pixd é o servidor HTTP do ciclo de vida do Pix.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"pix-lifecycle/pix"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "pixd",
		Short:   "Pix charge lifecycle server",
		Version: version,
		// sem subcomando, sobe o servidor
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.StoreDriver == "memory" {
				fmt.Fprintln(cmd.OutOrStdout(), "memory store: nothing to migrate")
				return nil
			}
			// abrir o Store já aplica as migrações pendentes
			_, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: migrations applied\n", cfg.StoreDriver)
			return nil
		},
	}
}

// tokenCmd emite um bearer token de desenvolvimento para um owner.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if strings.TrimSpace(owner) == "" {
				return fmt.Errorf("--owner is required")
			}

			auth, err := pix.NewJWTOwner(os.Getenv("JWT_SECRET"))
			if err != nil {
				return err
			}
			tok, err := auth.Sign(owner, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (JWT subject)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
