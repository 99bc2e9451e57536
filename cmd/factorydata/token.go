package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/factory-data-core/internal/auth"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
)

// newTokenCommand mints an access token signed with the configured secret.
// Production tokens come from the identity service; this is for local use.
func newTokenCommand(configPath func() string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}

			token, err := auth.GenerateToken(auth.TokenParams{
				Subject: subject,
				Role:    auth.Role(role),
				Issuer:  cfg.Security.JWT.Issuer,
				TTL:     ttl,
			}, cfg.Security.JWT.Secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, recorded as factory admin")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "role: viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
