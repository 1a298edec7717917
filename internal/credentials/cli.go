package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CLIHandler wires Manager to the demo CLI's "credentials" subcommands:
// set/get/delete the single CalDAV account's password.
type CLIHandler struct {
	manager *Manager
	stdin   io.Reader
	stdout  io.Writer
}

// NewCLIHandler creates a CLI handler for credential commands.
func NewCLIHandler(manager *Manager, stdin io.Reader, stdout io.Writer) *CLIHandler {
	return &CLIHandler{manager: manager, stdin: stdin, stdout: stdout}
}

// Set prompts for a password and stores it in the keyring.
func (h *CLIHandler) Set(account string) error {
	password, err := PromptPassword(h.stdin, h.stdout, account)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := h.manager.Set(context.Background(), account, password); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return keyringNotAvailableError()
		}
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	_, _ = fmt.Fprintln(h.stdout, "Credentials stored in system keyring")
	return nil
}

func keyringNotAvailableError() error {
	return errors.New(`system keyring not available in this build

Alternative: set the CALDAVSYNC_PASSWORD environment variable instead`)
}

// Get reports where the account's password would come from, without
// printing the password itself.
func (h *CLIHandler) Get(account string) error {
	cred, err := h.manager.Get(context.Background(), account)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}

	if !cred.Found {
		_, _ = fmt.Fprintf(h.stdout, "No credentials found for %s\n", account)
		_, _ = fmt.Fprintf(h.stdout, "Searched: system keyring, CALDAVSYNC_PASSWORD\n")
		return nil
	}

	_, _ = fmt.Fprintf(h.stdout, "Account: %s\n", cred.Account)
	_, _ = fmt.Fprintf(h.stdout, "Source: %s\n", cred.Source)
	_, _ = fmt.Fprintf(h.stdout, "Password: ******** (hidden)\n")
	return nil
}

// Delete removes the account's password from the keyring.
func (h *CLIHandler) Delete(account string) error {
	if err := h.manager.Delete(context.Background(), account); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	_, _ = fmt.Fprintln(h.stdout, "Credentials removed from system keyring")
	return nil
}
