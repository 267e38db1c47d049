package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AlayaCare/git-black/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadDecodesWorkersAndAuthor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".git-black.toml")
	content := "[core]\nworkers = 4\n\n[author]\nname = \"Black Bot\"\nemail = \"black-bot@example.com\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Core.Workers)
	assert.Equal(t, "Black Bot", cfg.Author.Name)
	assert.Equal(t, "black-bot@example.com", cfg.Author.Email)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[core]\nworkers = 2\n"), 0o644))

	cfg, err := config.Load(dir, path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Core.Workers)
}
