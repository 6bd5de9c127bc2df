package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config is written on first run")

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "data", "reports"), cfg.GetReportsDir())
	assert.Equal(t, filepath.Join(dir, "data", "history.duckdb"), cfg.Storage.HistoryDatabase)
	assert.Equal(t, "0.0.0.0:8000", cfg.GetServerAddr())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<ComexUnificador>")
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<ComexUnificador>
  <Server><Port>9090</Port><BindAddress>127.0.0.1</BindAddress><BodyLimit>50M</BodyLimit></Server>
  <Storage><DataDirectory>/srv/comex</DataDirectory><ReportsDirectory>out</ReportsDirectory></Storage>
  <Processing><RulesFile>rules.yaml</RulesFile></Processing>
  <Advanced><LogLevel>debug</LogLevel></Advanced>
</ComexUnificador>`
	require.NoError(t, os.WriteFile(path, []byte(xml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.GetServerAddr())
	assert.Equal(t, "50M", cfg.Server.BodyLimit)
	assert.Equal(t, "/srv/comex", cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "out"), cfg.GetReportsDir())
	assert.Equal(t, "/srv/comex/history.duckdb", cfg.Storage.HistoryDatabase)
	assert.Equal(t, filepath.Join(dir, "rules.yaml"), cfg.Processing.RulesFile)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	// unset elements keep their defaults
	assert.Equal(t, 2, cfg.Advanced.DuckDBThreads)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "elsewhere")
	t.Setenv("PORT", "7000")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RULES_FILE", "/etc/comex/rules.yaml")

	cfg, err := LoadConfig(filepath.Join(dir, FileName))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, dataDir, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dataDir, "reports"), cfg.GetReportsDir())
	assert.Equal(t, "warn", cfg.Advanced.LogLevel)
	assert.Equal(t, "/etc/comex/rules.yaml", cfg.Processing.RulesFile)
}

func TestLoadConfig_InvalidXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("<ComexUnificador><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.GetDataDir(), cfg.GetReportsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
