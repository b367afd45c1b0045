package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "log:\n" +
		"  log_level: ERROR\n" +
		"  log_dir: " + filepath.Join(dir, "logs") + "\n" +
		"watchlist:\n" +
		"  driver: memory\n" +
		"storage:\n" +
		"  dsn: " + filepath.Join(dir, "wpguard.db") + "\n" +
		"metrics:\n" +
		"  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"serve", "check", "examine", "watch"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestWatchCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--no-dotenv", "--config", cfg, "watch", "akismet/akismet.php")
	require.NoError(t, err)
	assert.Equal(t, "akismet/akismet.php is watched\n", out)
}

func TestWatchCommand_RejectsBlank(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "--no-dotenv", "--config", cfg, "watch", "   ")
	assert.Error(t, err)
}

func TestExamineCommand_NonImagePassesThrough(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	out, err := execute(t, "--no-dotenv", "--config", cfg, "examine", file)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "notes.txt"`)
	assert.NotContains(t, out, `"error"`)
}

func TestExamineCommand_RejectsUndecodableImage(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "holiday-in-the-mountains.png")
	require.NoError(t, os.WriteFile(file, []byte("not really a png"), 0o644))

	out, err := execute(t, "--no-dotenv", "--config", cfg, "examine", file)
	require.Error(t, err)
	assert.Contains(t, out, `"error"`)
}

func TestExamineCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "examine", filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}

func TestCheckCommand_EmptyWatchList(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--no-dotenv", "--config", cfg, "check", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id"`)
}
