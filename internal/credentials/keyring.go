package credentials

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrKeyringNotAvailable is returned when the system keyring is not available.
var ErrKeyringNotAvailable = errors.New("system keyring not available in this build")

// MockKeyring is an in-memory Keyring for tests.
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> password
}

func NewMockKeyring() *MockKeyring {
	return &MockKeyring{store: make(map[string]map[string]string)}
}

func (m *MockKeyring) Set(service, account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = password
	return nil
}

func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if accounts, ok := m.store[service]; ok {
		if password, ok := accounts[account]; ok {
			return password, nil
		}
	}
	return "", fmt.Errorf("password not found for %s/%s", service, account)
}

func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accounts, ok := m.store[service]; ok {
		if _, ok := accounts[account]; ok {
			delete(accounts, account)
			return nil
		}
	}
	return fmt.Errorf("password not found for %s/%s", service, account)
}

// systemKeyring is the Keyring backed by the OS credential store via
// github.com/zalando/go-keyring.
type systemKeyring struct{}

func (s *systemKeyring) Set(service, account, password string) error {
	if err := keyring.Set(service, account, password); err != nil {
		if isKeyringNotAvailable(err) {
			return ErrKeyringNotAvailable
		}
		return err
	}
	return nil
}

func (s *systemKeyring) Get(service, account string) (string, error) {
	password, err := keyring.Get(service, account)
	if err != nil {
		if isKeyringNotAvailable(err) {
			return "", ErrKeyringNotAvailable
		}
		return "", err
	}
	return password, nil
}

func (s *systemKeyring) Delete(service, account string) error {
	if err := keyring.Delete(service, account); err != nil {
		if isKeyringNotAvailable(err) {
			return ErrKeyringNotAvailable
		}
		return err
	}
	return nil
}

// isKeyringNotAvailable reports whether err means no OS keyring backend was
// reachable (no D-Bus/Secret Service, headless container, ...) rather than a
// genuine lookup failure.
func isKeyringNotAvailable(err error) bool {
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "dbus") ||
		strings.Contains(errStr, "secrets") ||
		strings.Contains(errStr, "x11") ||
		(strings.Contains(errStr, "not found") && strings.Contains(errStr, "executable"))
}
