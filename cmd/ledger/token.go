package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/auth"
	"ledger/internal/core"
)

func tokenCmd(a *app) *cobra.Command {
	var user string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long:  "Sign a token for --user with JWT_SECRET, for local testing of the API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}
			token, err := auth.NewVerifier(a.cfg.JWTSecret, a.cfg.JWTIssuer).Issue(core.UserID(user), ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "subject of the token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
