package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd_RegistersAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"build", "query", "inspect", "watch", "chunk", "serve"}
	got := make(map[string]bool)
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "expected %q to be registered", name)
	}
}

func TestNewRootCmd_Use(t *testing.T) {
	root := NewRootCmd()
	assert.Equal(t, "packctl", root.Use)
}
