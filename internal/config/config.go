package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kaiseki-nlp/kaiseki"
)

type Config struct {
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Plugins    PluginsConfig    `mapstructure:"plugins"`
	Tokenizer  TokenizerConfig  `mapstructure:"tokenizer"`
	Server     ServerConfig     `mapstructure:"server"`
	LogLevel   string           `mapstructure:"log_level"`
	LogFormat  string           `mapstructure:"log_format"`
}

type DictionaryConfig struct {
	SystemDict string   `mapstructure:"system_dict"`
	CharDef    string   `mapstructure:"char_def"`
	UserDicts  []string `mapstructure:"user_dicts"`
}

// PluginsConfig holds the raw plugin chains. Each element is a map with a
// "class" key; the other keys are handed to the plugin as settings. Keys
// read from a config file arrive lower-cased, which plugin settings decoding
// tolerates.
type PluginsConfig struct {
	InputText   []any `mapstructure:"input_text"`
	OovProvider []any `mapstructure:"oov_provider"`
	PathRewrite []any `mapstructure:"path_rewrite"`
}

type TokenizerConfig struct {
	Mode    string `mapstructure:"mode"`
	Workers int    `mapstructure:"workers"`
}

type ServerConfig struct {
	ListenAddr      string   `mapstructure:"listen_addr"`
	Workers         int      `mapstructure:"workers"`
	MaxTextBytes    int      `mapstructure:"max_text_bytes"`
	RequestTimeout  int      `mapstructure:"request_timeout"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
	CacheSize       int      `mapstructure:"cache_size"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Dictionary: DictionaryConfig{
			SystemDict: "dict/system",
			CharDef:    "dict/char.def",
		},
		Plugins: PluginsConfig{
			InputText: []any{map[string]any{"class": "DefaultInputTextPlugin"}},
		},
		Tokenizer: TokenizerConfig{
			Mode:    "C",
			Workers: 4,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         8,
			MaxTextBytes:    64 << 10,
			RequestTimeout:  10,
			ShutdownTimeout: 30,
			CacheSize:       1024,
			AllowedOrigins:  []string{"*"},
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// flagKeys maps each flag registered by RegisterFlags to its config key.
var flagKeys = map[string]string{
	"dictionary-system-dict":  "dictionary.system_dict",
	"dictionary-char-def":     "dictionary.char_def",
	"dictionary-user-dicts":   "dictionary.user_dicts",
	"tokenizer-mode":          "tokenizer.mode",
	"tokenizer-workers":       "tokenizer.workers",
	"server-listen-addr":      "server.listen_addr",
	"server-workers":          "server.workers",
	"server-max-text-bytes":   "server.max_text_bytes",
	"server-request-timeout":  "server.request_timeout",
	"server-shutdown-timeout": "server.shutdown_timeout",
	"server-cache-size":       "server.cache_size",
	"server-allowed-origins":  "server.allowed_origins",
	"log-level":               "log_level",
	"log-format":              "log_format",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("dictionary-system-dict", defaults.Dictionary.SystemDict, "System dictionary directory (matrix.def + lex.csv)")
	fs.String("dictionary-char-def", defaults.Dictionary.CharDef, "Character definition file")
	fs.StringSlice("dictionary-user-dicts", defaults.Dictionary.UserDicts, "User dictionary CSV files, merged in order")
	fs.String("tokenizer-mode", defaults.Tokenizer.Mode, "Split mode (A|B|C)")
	fs.Int("tokenizer-workers", defaults.Tokenizer.Workers, "Concurrent tokenizer goroutines for batch input")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent tokenize requests")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int("server-cache-size", defaults.Server.CacheSize, "Tokenization result cache entries (0 disables)")
	fs.StringSlice("server-allowed-origins", defaults.Server.AllowedOrigins, "CORS allowed origins")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("log-format", defaults.LogFormat, "Log format (text|json)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("KAISEKI")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("kaiseki")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that viper cannot type-check.
func (c Config) Validate() error {
	if _, err := kaiseki.ParseSplitMode(c.Tokenizer.Mode); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text|json)", c.LogFormat)
	}
	if c.Tokenizer.Workers < 0 || c.Server.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.Server.CacheSize < 0 {
		return errors.New("server.cache_size must not be negative")
	}
	return nil
}

// Kaiseki converts the configuration into the library's dictionary
// configuration.
func (c Config) Kaiseki() (kaiseki.Config, error) {
	input, err := descriptors(kaiseki.ChainInputText, c.Plugins.InputText)
	if err != nil {
		return kaiseki.Config{}, err
	}
	oov, err := descriptors(kaiseki.ChainOovProvider, c.Plugins.OovProvider)
	if err != nil {
		return kaiseki.Config{}, err
	}
	rewrite, err := descriptors(kaiseki.ChainPathRewrite, c.Plugins.PathRewrite)
	if err != nil {
		return kaiseki.Config{}, err
	}
	return kaiseki.Config{
		SystemDict:         c.Dictionary.SystemDict,
		CharDef:            c.Dictionary.CharDef,
		UserDicts:          c.Dictionary.UserDicts,
		InputTextPlugins:   input,
		OovProviderPlugins: oov,
		PathRewritePlugins: rewrite,
	}, nil
}

func descriptors(chain string, raw []any) ([]kaiseki.PluginDescriptor, error) {
	out := make([]kaiseki.PluginDescriptor, 0, len(raw))
	for i, r := range raw {
		switch m := r.(type) {
		case map[string]any:
			out = append(out, kaiseki.PluginDescriptor(m))
		case map[any]any:
			d := make(kaiseki.PluginDescriptor, len(m))
			for k, v := range m {
				key, ok := k.(string)
				if !ok {
					return nil, fmt.Errorf("%s plugin #%d: key %v is not a string: %w", chain, i, k, kaiseki.ErrInvalidPluginFormat)
				}
				d[key] = v
			}
			out = append(out, d)
		default:
			return nil, fmt.Errorf("%s plugin #%d: want a map, got %T: %w", chain, i, r, kaiseki.ErrInvalidPluginFormat)
		}
	}
	return out, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("dictionary.system_dict", c.Dictionary.SystemDict)
	v.SetDefault("dictionary.char_def", c.Dictionary.CharDef)
	v.SetDefault("dictionary.user_dicts", c.Dictionary.UserDicts)
	v.SetDefault("plugins.input_text", c.Plugins.InputText)
	v.SetDefault("plugins.oov_provider", c.Plugins.OovProvider)
	v.SetDefault("plugins.path_rewrite", c.Plugins.PathRewrite)
	v.SetDefault("tokenizer.mode", c.Tokenizer.Mode)
	v.SetDefault("tokenizer.workers", c.Tokenizer.Workers)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.cache_size", c.Server.CacheSize)
	v.SetDefault("server.allowed_origins", c.Server.AllowedOrigins)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
}

// bindFlags binds the flags present in fs to their nested keys so that a
// config file can set the same values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
