package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `json:"name"`
	Retries int    `json:"retries"`
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("config", "app.local.json5"), LocalPath(filepath.Join("config", "app.json5")))
	require.Equal(t, "app.local", LocalPath("app"))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.json5")

	_, err := ReadConfig[testConfig](path)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte(`{name: "base", retries: 1}`), 0644))
	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, testConfig{Name: "base", Retries: 1}, cfg)

	require.NoError(t, os.WriteFile(LocalPath(path), []byte(`{retries: 5}`), 0644))
	cfg, err = ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, testConfig{Name: "base", Retries: 5}, cfg)
}

func TestReadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{name: `), 0644))
	_, err := ReadConfig[testConfig](path)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}
