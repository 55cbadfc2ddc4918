package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/remote"
)

var commandViaKafka bool

var commandCmd = &cobra.Command{
	Use:   "command <directive>...",
	Short: "Queue remote directives for a running bot",
	Long: "Queue directives such as 'lockdown:on', 'pause:off', 'exit' or 'kill'.\n" +
		"By default they are appended to the command file; with --kafka they are\n" +
		"published to the configured command topic.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if commandViaKafka {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			k := cfg.Remote.Kafka
			if err := remote.Publish(ctx, k.Brokers, k.Topic, args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d directive(s) to %s\n", len(args), k.Topic)
			return nil
		}
		if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
			return err
		}
		if err := remote.WriteFile(cfg.Paths.CommandFile, args); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %d directive(s) in %s\n", len(args), cfg.Paths.CommandFile)
		return nil
	},
}

func init() {
	commandCmd.Flags().BoolVar(&commandViaKafka, "kafka", false, "Publish to the Kafka command topic instead of the command file")
}
