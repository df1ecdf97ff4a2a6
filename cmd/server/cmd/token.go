package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventdeck/server/internal/auth"
)

func newTokenCommand(flags *globalFlags) *cobra.Command {
	var (
		subject string
		name    string
		expiry  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Long: `Mint a JWT signed with JWT_SECRET. The subject becomes the acting user id
for every request that carries the token.

Example:
  JWT_SECRET=dev-secret server token --subject alice
  curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/V1/api/events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to mint tokens")
			}
			if expiry <= 0 {
				expiry = cfg.Auth.JWTExpiry
			}

			token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, expiry, cfg.Auth.JWTIssuer).Generate(subject, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id the token acts as")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default: JWT_EXPIRY_HOURS)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
