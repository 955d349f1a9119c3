package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults when missing", func(t *testing.T) {
		config, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		assert.Equal(t, "info", config.LogLevel)
		assert.Equal(t, "treecommit", config.Committer.Name)
		assert.Positive(t, config.Workers)
		assert.Equal(t, 1024, config.Journal.MinSize)
	})

	t.Run("Overrides", func(t *testing.T) {
		path := writeConfig(t, `{
			"committer": {"name": "bot", "email": "bot@example.com"},
			"journal": {"path": "/tmp/journal"},
			"workers": 4,
			"log_level": "debug"
		}`)

		config, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "bot", config.Committer.Name)
		assert.Equal(t, "/tmp/journal", config.Journal.Path)
		assert.Equal(t, 4, config.Workers)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, 256, config.TreeCacheSize)
	})

	t.Run("Invalid level", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{"log_level": "loud"}`))
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{`))
		assert.Error(t, err)
	})
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/treecommit.json")
	assert.Equal(t, "/etc/treecommit.json", Path())
}
