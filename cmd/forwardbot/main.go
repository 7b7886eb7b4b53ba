package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memohai/forwardbot/internal/config"
)

func NewForwardbotCommand() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "forwardbot",
		Short:         "Mirror one Discord guild's channels into another and relay messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or "+config.DefaultConfigPath+")")

	cmd.AddCommand(
		newServeCommand(&cfgPath),
		newTokenCommand(&cfgPath),
		newRoutesCommand(&cfgPath),
	)
	return cmd
}

func main() {
	cmd := NewForwardbotCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(flagPath string) (config.Config, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
