package main

import (
	"fmt"
	"time"

	"fmconsole/internal/auth"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var site, upstream string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <operator-id>",
		Short: "Issue an operator token signed with jwt-secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := auth.NewJWTConfig(cfg.JWTSecret).Sign(args[0], site, upstream, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site the operator works on")
	cmd.Flags().StringVar(&upstream, "upstream-claim", "", "upstream API token carried in the claims")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
