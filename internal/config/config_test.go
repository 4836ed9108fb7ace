package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinigraph/internal/execution"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 30*time.Second, cfg.Server.Keepalive.Duration())
	assert.Equal(t, 7, cfg.Thresholds.Symptoms.SeverityThreshold)
	assert.InDelta(t, 0.2, cfg.Thresholds.Diagnoses.ProbabilityThreshold, 1e-9)
	assert.Equal(t, 7, cfg.Thresholds.Treatments.PriorityThreshold)
	assert.InDelta(t, 0.4, cfg.Scoring.PriorityWeight, 1e-9)
	assert.InDelta(t, 0.6, cfg.Scoring.DiagnosticWeight, 1e-9)
	assert.Equal(t, execution.DefaultConsensusNode, cfg.Execution.ConsensusNodeID)
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:9000"
	cfg.Thresholds.SetSymptomThreshold(4)
	cfg.Thresholds.Diagnoses.ShowAll = true
	cfg.Execution.ConsensusNodeID = "panel"
	cfg.Server.Keepalive = Duration(5 * time.Second)

	require.NoError(t, cfg.Save(configPath))

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, Location{Path: configPath, Source: SourceFlag}, loaded.Source())

	assert.Equal(t, "127.0.0.1:9000", loaded.Server.Addr)
	assert.Equal(t, 4, loaded.Thresholds.Symptoms.SeverityThreshold)
	assert.True(t, loaded.Thresholds.Diagnoses.ShowAll)
	assert.Equal(t, "panel", loaded.Execution.ConsensusNodeID)
	assert.Equal(t, 5*time.Second, loaded.Server.Keepalive.Duration())
}

func TestLoadAppliesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":7000"
thresholds:
  symptoms:
    severity_threshold: 42
  diagnoses:
    probability_threshold: -1
layout:
  width: 0
`
	require.NoError(t, os.WriteFile(configPath, []byte(data), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Thresholds.Symptoms.SeverityThreshold)
	assert.Equal(t, 0.0, cfg.Thresholds.Diagnoses.ProbabilityThreshold)
	assert.Equal(t, 7, cfg.Thresholds.Treatments.PriorityThreshold)
	assert.Equal(t, DefaultConfig().Layout.Width, cfg.Layout.Width)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	badDuration := filepath.Join(t.TempDir(), "duration.yaml")
	require.NoError(t, os.WriteFile(badDuration, []byte("server:\n  keepalive: soon\n"), 0644))
	_, err = Load(badDuration)
	assert.Error(t, err)
}

// isolate points every search location into fresh temp dirs and returns
// the working directory, XDG home, HOME and system root.
func isolate(t *testing.T) (workDir, xdg, home, system string) {
	t.Helper()
	workDir, xdg, home, system = t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir()
	t.Chdir(workDir)
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", home)

	prev := systemDir
	systemDir = system
	t.Cleanup(func() { systemDir = prev })
	return workDir, xdg, home, system
}

func TestFindPriorityOrder(t *testing.T) {
	workDir, xdg, home, system := isolate(t)

	env := filepath.Join(t.TempDir(), "explicit.yaml")
	locations := []Location{
		{Path: env, Source: SourceEnv},
		{Path: filepath.Join(workDir, ConfigFileName), Source: SourceWorkDir},
		{Path: filepath.Join(xdg, ConfigDirName, "config.yaml"), Source: SourceXDG},
		{Path: filepath.Join(home, ".config", ConfigDirName, "config.yaml"), Source: SourceHome},
		{Path: filepath.Join(system, ConfigDirName, "config.yaml"), Source: SourceSystem},
	}
	for _, loc := range locations {
		require.NoError(t, DefaultConfig().Save(loc.Path))
	}
	t.Setenv(EnvConfigPath, env)

	// Removing the winner each round exposes the next rule
	for _, want := range locations {
		got, err := Find("")
		require.NoError(t, err)
		wantPath, err := filepath.EvalSymlinks(want.Path)
		require.NoError(t, err)
		gotPath, err := filepath.EvalSymlinks(got.Path)
		require.NoError(t, err)
		assert.Equal(t, want.Source, got.Source)
		assert.Equal(t, wantPath, gotPath)
		require.NoError(t, os.Remove(want.Path))
	}

	got, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, Location{Source: SourceDefaults}, got)
}

func TestFindSkipsMissingEnvAndDirectories(t *testing.T) {
	_, xdg, _, _ := isolate(t)
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")

	// A directory named like the config file is not a config
	require.NoError(t, os.Mkdir(ConfigFileName, 0755))

	xdgPath := filepath.Join(xdg, ConfigDirName, "config.yaml")
	require.NoError(t, DefaultConfig().Save(xdgPath))

	got, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, SourceXDG, got.Source)
}

func TestFindExplicitPath(t *testing.T) {
	isolate(t)

	_, err := Find(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	explicit := filepath.Join(t.TempDir(), "clinigraph.yaml")
	require.NoError(t, DefaultConfig().Save(explicit))
	got, err := Find(explicit)
	require.NoError(t, err)
	assert.Equal(t, Location{Path: explicit, Source: SourceFlag}, got)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceDefaults, cfg.Source().Source)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestLoadReportsSearchSource(t *testing.T) {
	_, _, home, _ := isolate(t)

	homePath := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(homePath), 0755))
	require.NoError(t, os.WriteFile(homePath, []byte("server:\n  addr: \":9100\"\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, SourceHome, cfg.Source().Source)
	assert.Contains(t, cfg.Summary(), "(home)")
}

func TestDefaultPath(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	assert.Equal(t, filepath.Join(xdg, ConfigDirName, "config.yaml"), DefaultPath())

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config", ConfigDirName, "config.yaml"), DefaultPath())
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)
	assert.Equal(t, 5*time.Minute, d.Duration())

	marshaled, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", marshaled)
}

func TestSummary(t *testing.T) {
	s := DefaultConfig().Summary()
	assert.Contains(t, s, "Source: defaults")
	assert.Contains(t, s, ":8080")
	assert.Contains(t, s, "consensus_merger")
}
