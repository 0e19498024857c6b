package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
)

// NewTokenCmd signs a host token with the configured secret, for local runs without the admin service.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		admin   bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a host token signed with auth.secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			token, err := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer).Issue(subject, admin, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&admin, "admin", true, "grant the admin role")
	return cmd
}
