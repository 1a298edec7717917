package credentials

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCLIHandlerSetPromptsAndStores(t *testing.T) {
	manager := NewManager("caldavsync-demo", WithKeyring(NewMockKeyring()))
	stdin := bytes.NewBufferString("hunter2\n")
	stdout := &bytes.Buffer{}
	h := NewCLIHandler(manager, stdin, stdout)

	if err := h.Set("alice"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "stored") {
		t.Errorf("stdout = %q, want confirmation of storage", stdout.String())
	}

	cred, err := manager.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cred.Password != "hunter2" {
		t.Fatalf("stored password = %q, want hunter2", cred.Password)
	}
}

func TestCLIHandlerGetReportsNotFoundWithoutLeakingPassword(t *testing.T) {
	manager := NewManager("caldavsync-demo", WithKeyring(NewMockKeyring()))
	stdout := &bytes.Buffer{}
	h := NewCLIHandler(manager, bytes.NewBufferString(""), stdout)

	if err := h.Get("alice"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "No credentials found") {
		t.Errorf("stdout = %q, want not-found message", stdout.String())
	}
}

func TestCLIHandlerGetHidesStoredPassword(t *testing.T) {
	manager := NewManager("caldavsync-demo", WithKeyring(NewMockKeyring()))
	if err := manager.Set(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	stdout := &bytes.Buffer{}
	h := NewCLIHandler(manager, bytes.NewBufferString(""), stdout)

	if err := h.Get("alice"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if strings.Contains(stdout.String(), "hunter2") {
		t.Errorf("stdout leaked the password: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "hidden") {
		t.Errorf("stdout = %q, want password masked as hidden", stdout.String())
	}
}

func TestCLIHandlerDelete(t *testing.T) {
	manager := NewManager("caldavsync-demo", WithKeyring(NewMockKeyring()))
	if err := manager.Set(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	stdout := &bytes.Buffer{}
	h := NewCLIHandler(manager, bytes.NewBufferString(""), stdout)

	if err := h.Delete("alice"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	cred, err := manager.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cred.Found {
		t.Fatalf("credential still found after Delete()")
	}
}
