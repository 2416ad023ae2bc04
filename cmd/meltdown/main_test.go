package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mostlygeek/meltdown/config"
	"github.com/mostlygeek/meltdown/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, content string) config.Config {
	t.Helper()
	cfg, err := config.LoadConfigFromReader(strings.NewReader(content))
	require.NoError(t, err)
	return cfg
}

func TestBuildBus_DefaultOnly(t *testing.T) {
	b, err := buildBus(loadTestConfig(t, ""))
	require.NoError(t, err)
	defer b.Close()

	regs := b.Select("anything")
	require.Len(t, regs, 1)
	assert.True(t, regs[0].IsDefault())

	assert.NoError(t, b.Notify(context.Background(), "anything", event.New("x")))
}

func TestBuildBus_Hooks(t *testing.T) {
	cfg := loadTestConfig(t, `
dispatcher: thread-pool
workers: 2
hooks:
  - selector: "orders.*"
    kind: glob
    command: "true"
  - selector: "audit"
    command: "true"
    once: true
`)
	b, err := buildBus(cfg)
	require.NoError(t, err)
	defer b.Close()

	regs := b.Select("orders.created")
	require.Len(t, regs, 1)
	assert.False(t, regs[0].IsDefault())
	hook, ok := regs[0].Metadata().(config.Hook)
	require.True(t, ok)
	assert.Equal(t, "orders.*", hook.Selector)

	regs = b.Select("audit")
	require.Len(t, regs, 1)
	assert.True(t, regs[0].CancelAfterUse())

	regs = b.Select("users.created")
	require.Len(t, regs, 1)
	assert.True(t, regs[0].IsDefault())
}

func TestBuildBus_BadDefaultCommand(t *testing.T) {
	cfg := loadTestConfig(t, "")
	cfg.Default.Command = "   "
	_, err := buildBus(cfg)
	assert.Error(t, err)
}

func TestRootCmd_Version(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "version: ")
}

func TestRootCmd_ExampleConfig(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"example-config"})
	require.NoError(t, cmd.Execute())

	// the embedded example must stay loadable
	_, err := config.LoadConfigFromReader(bytes.NewReader(out.Bytes()))
	assert.NoError(t, err)
}

func TestRootCmd_Select(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hooks:
  - selector: "orders.*"
    kind: glob
    command: "true"
`), 0644))

	tests := []struct {
		key  string
		want string
	}{
		{"orders.created", "1\tG(orders.*)\n"},
		{"users.created", "default\tall()\n"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cmd := NewRootCmd()
			var out, errOut bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&errOut)
			cmd.SetArgs([]string{"select", "--config", path, tt.key})
			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRootCmd_MissingConfig(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"select", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "x"})
	assert.Error(t, cmd.Execute())
}
