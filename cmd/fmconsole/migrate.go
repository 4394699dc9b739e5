package main

import (
	"errors"
	"fmt"

	"fmconsole/internal/db"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply audit log migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database-url is not set")
			}
			applied, err := db.Migrate(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Printf("applied migration %d\n", v)
			}
			return nil
		},
	}
}
