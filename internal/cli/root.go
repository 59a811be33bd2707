// Package cli is the chatsync command line: the relay server plus a small
// client that prints the local cache as plain text.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Vasu1712/chatsync/internal/bg"
	"github.com/Vasu1712/chatsync/internal/config"
	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/reconciler"
	"github.com/Vasu1712/chatsync/internal/session"
	"github.com/Vasu1712/chatsync/internal/storage"
	"github.com/Vasu1712/chatsync/internal/storage/pebblekv"
)

type globals struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the chatsync command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "chatsync",
		Short:         "Chat client with a local cache and a relay server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRelayCommand(g),
		newRegisterCommand(g),
		newLoginCommand(g),
		newLogoutCommand(g),
		newWhoamiCommand(g),
		newConversationsCommand(g),
		newStartCommand(g),
		newSendCommand(g),
		newWatchCommand(g),
		newThreadCommand(g),
		newForwardCommand(g),
		newSearchCommand(g),
		newNotificationsCommand(g),
		newThemeCommand(g),
	)
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (g *globals) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, logger.Init(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format), nil
}

type appOptions struct {
	runner  bg.Runner
	alerter reconciler.Alerter
}

// openApp builds a client session on the configured storage. The caller
// closes it, which also closes the store.
func (g *globals) openApp(cmd *cobra.Command, opts appOptions) (*session.App, error) {
	cfg, log, err := g.load(cmd)
	if err != nil {
		return nil, err
	}
	var kv storage.KV = storage.NewMemoryKV()
	if cfg.Storage.Mode == "pebble" {
		if kv, err = pebblekv.Open(cfg.Storage.Path); err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}
	app, err := session.New(session.Options{
		Config:  cfg,
		Logger:  log,
		KV:      kv,
		Runner:  opts.runner,
		Alerter: opts.alerter,
	})
	if err != nil {
		kv.Close()
		return nil, err
	}
	return app, nil
}
