package main

import (
	"encoding/json"
	"fmt"
	"os"

	"fmconsole/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fmconsole",
	Short: "Facilities management console service",
	Long: `fmconsole serves the operator console for facilities records.
- Tasks: step through a checklist wizard and submit the answers.
- Permits: fill standard and hazardous permit forms.
- Tickets: edit complaint tickets with cascading location selectors.
- Reports: moderate community reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Init(viper.GetViper(), cfgFile)
	},
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres URL of the submission audit log")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address")
	rootCmd.PersistentFlags().String("upstream-base-url", "", "base URL of the facilities backend")
	rootCmd.PersistentFlags().String("upstream-token", "", "service token for the facilities backend")
	_ = viper.BindPFlag("database-url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("redis-addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	_ = viper.BindPFlag("upstream.base-url", rootCmd.PersistentFlags().Lookup("upstream-base-url"))
	_ = viper.BindPFlag("upstream.token", rootCmd.PersistentFlags().Lookup("upstream-token"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(tokenCmd())
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
