package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaiseki-nlp/kaiseki"
	"github.com/kaiseki-nlp/kaiseki/internal/config"
)

var (
	cfgFile   string
	activeCfg *config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "kaiseki",
		Short:         "Dictionary-driven morphological analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = &loaded
			slog.SetDefault(loaded.NewLogger(os.Stderr))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTokenizeCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newPOSCmd())

	return cmd
}

func requireConfig() (config.Config, error) {
	if activeCfg == nil {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return *activeCfg, nil
}

// loadDictionary builds the dictionary described by cfg.
func loadDictionary(cfg config.Config) (*kaiseki.Dictionary, error) {
	kc, err := cfg.Kaiseki()
	if err != nil {
		return nil, err
	}
	kc.Logger = slog.Default()

	start := time.Now()
	dict, err := kaiseki.New(kc)
	if err != nil {
		return nil, err
	}
	slog.Debug("dictionary loaded", slog.Duration("elapsed", time.Since(start)))
	return dict, nil
}
