package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/forwardbot/internal/auth"
)

func newTokenCommand(cfgPath *string) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				if ttl, err = cfg.Admin.TokenTTL(); err != nil {
					return err
				}
			}
			token, expiresAt, err := auth.GenerateToken(auth.AdminSubject, cfg.Admin.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default admin.jwt_expires_in)")
	return cmd
}
