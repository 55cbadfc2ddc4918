package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/directory"
	"github.com/usherbot/usherbot/internal/textutil"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect the known users file",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known users and admins",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := loadDirectory()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADMIN")
		for _, e := range dir.Entries() {
			admin := ""
			if e.Admin {
				admin = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\n", e.Name, admin)
		}
		return w.Flush()
	},
}

var usersCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Show how a display name matches the known users",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := loadDirectory()
		if err != nil {
			return err
		}
		known, admin := dir.Lookup(args[0])
		state := "unknown"
		switch {
		case admin:
			state = "known, admin"
		case known:
			state = "known"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s\n", args[0], textutil.NormalizeName(args[0]), state)
		return nil
	},
}

func loadDirectory() (*directory.Directory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	dir := directory.New(cfg.Paths.KnownUsers)
	if _, err := dir.Reload(); err != nil {
		return nil, err
	}
	return dir, nil
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCheckCmd)
}
