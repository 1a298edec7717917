package cmd

import (
	"bytes"
	"testing"
)

func TestNewRootRegistersSubcommands(t *testing.T) {
	rc := &RunConfig{}
	root := NewRoot(&bytes.Buffer{}, &bytes.Buffer{}, rc)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	if !names["sync"] || !names["credentials"] {
		t.Fatalf("root command set = %v, want sync and credentials present", names)
	}
}

func TestSyncRequiresServerURLAndUsername(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rc := &RunConfig{DataDir: t.TempDir(), ConfigPath: t.TempDir() + "/config.yaml"}
	root := NewRoot(stdout, stderr, rc)
	root.SetArgs([]string{"sync", "--no-tui"})
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		t.Fatalf("Execute() with no --server-url/--username: want error, got nil")
	}
}
