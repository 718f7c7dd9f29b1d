package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"vsnplyr/internal/cache"
	"vsnplyr/internal/client"
	"vsnplyr/internal/config"
	"vsnplyr/internal/rpcclient"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	serverURL  string
	verbose    bool

	cfg    *config.Config
	logger *logrus.Logger
	remote *rpcclient.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "vsnctl",
		Short: "vsnctl manages playlists on a vsnplyr server",
		Long: `vsnctl manages playlists on a vsnplyr server. Membership changes are
applied optimistically: the new order is shown at once and rolled back if
the server rejects it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: built-in defaults plus VSNPLYR_* environment)")
	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "server URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests and subscription events")

	root.AddCommand(
		newPlaylistsCmd(a),
		newSongsCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newMoveCmd(a),
		newReorderCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.configPath != "" {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		a.cfg = config.DefaultConfig()
		if err := a.cfg.ApplyEnv(); err != nil {
			return err
		}
	}
	if a.serverURL != "" {
		a.cfg.Client.ServerURL = a.serverURL
	}

	a.logger = logrus.New()
	a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if a.verbose {
		a.logger.SetLevel(logrus.DebugLevel)
	} else {
		a.logger.SetOutput(io.Discard)
	}

	timeout := time.Duration(a.cfg.Client.RequestTimeout) * time.Second
	a.remote = rpcclient.New(a.cfg.Client.ServerURL, timeout, a.logger)
	return nil
}

// withSession runs fn against a session over the configured server.
func (a *app) withSession(ctx context.Context, fn func(s *client.Session) error) error {
	songs := cache.NewSongCache(10 * time.Minute)
	defer songs.Close()

	s, err := client.NewSession(ctx, a.remote, songs, a.logger)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.cfg.Client.ServerURL, err)
	}
	defer s.Close()
	return fn(s)
}
