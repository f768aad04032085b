package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiseki-nlp/kaiseki"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	return &fakeBinder{fs: fs}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "dict/system", cfg.Dictionary.SystemDict)
	assert.Equal(t, "C", cfg.Tokenizer.Mode)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 1024, cfg.Server.CacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	checks := map[string]string{
		"dictionary-system-dict": "dict/system",
		"tokenizer-mode":         "C",
		"server-listen-addr":     ":8080",
		"server-cache-size":      "1024",
		"log-level":              "info",
		"log-format":             "text",
	}
	for flag, want := range checks {
		f := fs.Lookup(flag)
		if assert.NotNil(t, f, flag) {
			assert.Equal(t, want, f.DefValue, flag)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Cmd: newFlagBinder(defaults), Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, defaults.Dictionary.SystemDict, cfg.Dictionary.SystemDict)
	assert.Equal(t, defaults.Server.Workers, cfg.Server.Workers)
	assert.Equal(t, defaults.LogLevel, cfg.LogLevel)
	require.Len(t, cfg.Plugins.InputText, 1)
}

func TestLoad_FlagOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)
	require.NoError(t, binder.fs.Parse([]string{
		"--tokenizer-mode=A",
		"--server-listen-addr=:9999",
		"--dictionary-user-dicts=a.csv,b.csv",
	}))

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, "A", cfg.Tokenizer.Mode)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.Dictionary.UserDicts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KAISEKI_SERVER_WORKERS", "3")
	t.Setenv("KAISEKI_LOG_LEVEL", "debug")
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Cmd: newFlagBinder(defaults), Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Server.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "kaiseki.yaml", `
dictionary:
  system_dict: /data/system
  user_dicts: [/data/user.csv]
plugins:
  input_text:
    - class: DefaultInputTextPlugin
    - class: ProlongedSoundMarkInputTextPlugin
      prolongedSoundMarks: ["ー", "〜"]
  oov_provider:
    - class: MeCabOovProviderPlugin
      unkDef: /data/unk.def
  path_rewrite:
    - class: JoinNumericPlugin
      enableNormalize: false
tokenizer:
  mode: b
`)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Cmd: newFlagBinder(defaults), ConfigFile: path, Defaults: defaults})
	require.NoError(t, err)
	assert.Equal(t, "/data/system", cfg.Dictionary.SystemDict)
	assert.Equal(t, defaults.Dictionary.CharDef, cfg.Dictionary.CharDef)

	kc, err := cfg.Kaiseki()
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/user.csv"}, kc.UserDicts)
	require.Len(t, kc.InputTextPlugins, 2)
	assert.Equal(t, "ProlongedSoundMarkInputTextPlugin", kc.InputTextPlugins[1].Class())
	assert.Len(t, kc.InputTextPlugins[1].Settings()["prolongedsoundmarks"], 2)
	require.Len(t, kc.OovProviderPlugins, 1)
	assert.Equal(t, "/data/unk.def", kc.OovProviderPlugins[0].Settings()["unkdef"])
	require.Len(t, kc.PathRewritePlugins, 1)
	assert.Equal(t, false, kc.PathRewritePlugins[0]["enablenormalize"])
}

func TestLoad_DiscoversConfigInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kaiseki.json"), []byte(`{"log_format": "json"}`), 0o644))
	t.Chdir(dir)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Defaults: defaults})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	defaults := DefaultConfig()

	_, err := Load(LoadOptions{Defaults: defaults, ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "tokenizer:\n  mode: D\n")
	_, err = Load(LoadOptions{Defaults: defaults, ConfigFile: bad})
	assert.Error(t, err)
}

func TestKaiseki_InvalidPluginEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Plugins.OovProvider = []any{"SimpleOovProviderPlugin"}

	_, err := cfg.Kaiseki()
	assert.ErrorIs(t, err, kaiseki.ErrInvalidPluginFormat)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"mode":       func(c *Config) { c.Tokenizer.Mode = "X" },
		"log level":  func(c *Config) { c.LogLevel = "loud" },
		"log format": func(c *Config) { c.LogFormat = "xml" },
		"workers":    func(c *Config) { c.Server.Workers = -1 },
		"cache size": func(c *Config) { c.Server.CacheSize = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"", "INFO", "debug", "Warning", "error"} {
		_, err := ParseLogLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}
