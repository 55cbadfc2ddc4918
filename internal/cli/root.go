package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/usherbot/usherbot/internal/config"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/usherbot/usherbot/internal/cli.version=1.2.3"
	version = "0.9.0"
	logo    = "\n" +
		"  _   _     _               ____        _\n" +
		" | | | |___| |__   ___ _ __| __ )  ___ | |_\n" +
		" | | | / __| '_ \\ / _ \\ '__|  _ \\ / _ \\| __|\n" +
		" | |_| \\__ \\ | | |  __/ |  | |_) | (_) | |_\n" +
		"  \\___/|___/_| |_|\\___|_|  |____/ \\___/ \\__|\n"
)

// logLevel is shared with the automation registry so debug mode can raise
// verbosity at runtime.
var logLevel = new(slog.LevelVar)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "usherbot",
	Short: "UsherBot - meeting usher and moderator",
	Long:  color.CyanString(logo) + "\nAdmits, promotes and chats with participants of an online meeting.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnvFileCandidates()
		if verbose {
			logLevel.Set(slog.LevelDebug)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(title))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(auditCmd)
}
