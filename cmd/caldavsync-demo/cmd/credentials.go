package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"caldavsync/internal/credentials"
)

func newCredentialsCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the stored CalDAV account password",
	}

	root.AddCommand(&cobra.Command{
		Use:   "set <account>",
		Short: "Prompt for and store a password in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := credentials.NewManager("caldavsync-demo")
			h := credentials.NewCLIHandler(manager, os.Stdin, stdout)
			return h.Set(args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get <account>",
		Short: "Report where the account's password would come from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := credentials.NewManager("caldavsync-demo")
			h := credentials.NewCLIHandler(manager, os.Stdin, stdout)
			return h.Get(args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "delete <account>",
		Short: "Remove the account's password from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := credentials.NewManager("caldavsync-demo")
			h := credentials.NewCLIHandler(manager, os.Stdin, stdout)
			return h.Delete(args[0])
		},
	})

	return root
}
