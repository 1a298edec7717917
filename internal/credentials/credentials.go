// Package credentials stores and retrieves the Basic-auth password a CalDAV
// account needs, using the OS-native keyring with a fallback to environment
// variables. It is a demo-CLI concern only: calendar.Dav and source.Dav
// accept credentials as a plain struct and never import this package,
// keeping credential storage a caller decision rather than a library one.
package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source indicates where a credential was retrieved from.
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// Credential is what Get returns: a password plus where it came from, for
// the demo CLI to report to the user without echoing the password itself.
type Credential struct {
	Source   Source
	Account  string
	Password string
	Found    bool
}

// Keyring is the interface for keyring operations; Manager is built against
// this so tests can substitute MockKeyring for the OS-native one.
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager stores and retrieves one account's password under a fixed
// keyring service name.
type Manager struct {
	service string
	keyring Keyring
}

// ManagerOption is a functional option for Manager.
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation, for tests.
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a credential manager that stores passwords under the
// given keyring service name (e.g. "caldavsync-demo").
func NewManager(service string, opts ...ManagerOption) *Manager {
	m := &Manager{
		service: service,
		keyring: &systemKeyring{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores a password in the keyring.
func (m *Manager) Set(_ context.Context, account, password string) error {
	return m.keyring.Set(m.service, account, password)
}

// Get retrieves a password, trying the keyring first and then the
// CALDAVSYNC_PASSWORD environment variable (for headless runs where no
// keyring is available).
func (m *Manager) Get(_ context.Context, account string) (*Credential, error) {
	password, err := m.keyring.Get(m.service, account)
	if err == nil && password != "" {
		return &Credential{Source: SourceKeyring, Account: account, Password: password, Found: true}, nil
	}

	if envPassword := os.Getenv("CALDAVSYNC_PASSWORD"); envPassword != "" {
		return &Credential{Source: SourceEnvironment, Account: account, Password: envPassword, Found: true}, nil
	}

	return &Credential{Source: SourceNone, Account: account, Found: false}, nil
}

// Delete removes a password from the keyring. Idempotent: deleting an
// account with no stored password is not an error.
func (m *Manager) Delete(_ context.Context, account string) error {
	err := m.keyring.Delete(m.service, account)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}

// PromptPassword prompts the user for a password. In production this would
// use a hidden-input reader; for testing it just reads a line.
func PromptPassword(reader io.Reader, writer io.Writer, account string) (string, error) {
	_, _ = fmt.Fprintf(writer, "Enter password for %s: ", account)

	scanner := bufio.NewScanner(reader)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}
