package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "plan", "schedule", "migrate", "status"} {
		assert.Contains(t, names, want)
	}
}

func TestMigrateAndStatusAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	raw := "database:\n  driver: sqlite3\n  dsn: " + filepath.Join(dir, "catalog.db") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(raw), 0o600))
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DATABASE_DRIVER", "")

	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"migrate", "--config", cfgPath}, want: "schema applied"},
		{args: []string{"status", "--config", cfgPath}, want: "no import has run yet"},
	} {
		root := newRootCommand()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(tc.args)

		require.NoError(t, root.ExecuteContext(context.Background()))
		assert.Contains(t, out.String(), tc.want)
	}
}
