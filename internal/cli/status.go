package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/directory"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and data file status",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Fprintln(out, "Config:  ✓ Found ("+path+")")
			} else {
				fmt.Fprintln(out, "Config:  ✗ Not found (run 'usherbot config init' first)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(out, "Config:  ✗ Invalid (%v)\n", err)
			return
		}
		fmt.Fprintf(out, "Bot:     %s (flags: %s)\n", cfg.Bot.Name, cfg.Bot.Automation)

		dir := directory.New(cfg.Paths.KnownUsers)
		if _, err := dir.Reload(); err != nil {
			fmt.Fprintf(out, "Users:   ✗ %v\n", err)
		} else if dir.Len() == 0 {
			fmt.Fprintln(out, "Users:   ✗ None known ("+cfg.Paths.KnownUsers+")")
		} else {
			fmt.Fprintf(out, "Users:   ✓ %d known\n", dir.Len())
		}

		if _, err := os.Stat(cfg.Paths.CommandFile); err == nil {
			fmt.Fprintln(out, "Queue:   pending directives in "+cfg.Paths.CommandFile)
		}
		if cfg.Provider.APIKey != "" {
			fmt.Fprintln(out, "LLM:     ✓ API key set")
		} else {
			fmt.Fprintln(out, "LLM:     ✗ No API key")
		}
		if cfg.Remote.Kafka.Enabled {
			fmt.Fprintf(out, "Kafka:   ✓ %s\n", cfg.Remote.Kafka.Topic)
		}
		if cfg.Bridge.DriverURL == "" {
			fmt.Fprintln(out, "Driver:  ✗ bridge.driverUrl not set")
		} else {
			fmt.Fprintln(out, "Driver:  "+cfg.Bridge.DriverURL)
		}
	},
}
