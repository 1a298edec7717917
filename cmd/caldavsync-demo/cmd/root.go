// Package cmd implements the caldavsync-demo command tree.
//
// Grounded on the teacher's cmd/todoat/cmd.NewTodoAt/Execute: an injectable
// I/O, testable root command builder plus a thin Execute entry point the
// real main() calls with os.Stdout/os.Stderr.
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// RunConfig carries flag overrides and injectable paths the tests use to
// avoid touching the real XDG config/data directories.
type RunConfig struct {
	ConfigPath string
	DataDir    string
	ServerURL  string
	Username   string
}

// Execute builds and runs the root command, returning a process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRoot(stdout, stderr, &RunConfig{})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRoot creates the root command with injectable IO and config, for
// both the real binary and its tests.
func NewRoot(stdout, stderr io.Writer, rc *RunConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "caldavsync-demo",
		Short: "Synchronize a local calendar store with a CalDAV account",
		Long: `caldavsync-demo drives the caldavsync provider against one CalDAV
account and a local on-disk calendar store, reconciling both sides and
reporting live progress.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "path to config.yaml (default: XDG config dir)")
	root.PersistentFlags().StringVar(&rc.DataDir, "data-dir", "", "path to the local calendar store (default: XDG data dir)")
	root.PersistentFlags().StringVar(&rc.ServerURL, "server-url", "", "CalDAV server base URL")
	root.PersistentFlags().StringVar(&rc.Username, "username", "", "CalDAV account username")

	root.AddCommand(newSyncCmd(stdout, stderr, rc))
	root.AddCommand(newCredentialsCmd(stdout))

	return root
}
