// Package main provides the entry point for the googler web host.
// The host serves the Google OAuth callback route, exchanges the authorization code with the
// backend and keeps the resulting session. With -login it runs the same handshake from the
// terminal instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/googler-dev/googler-web/internal/api"
	"github.com/googler-dev/googler-web/internal/buildinfo"
	"github.com/googler-dev/googler-web/internal/cmd"
	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/logging"
	"github.com/googler-dev/googler-web/internal/misc"
	"github.com/googler-dev/googler-web/internal/session"
	"github.com/googler-dev/googler-web/internal/util"
	"github.com/googler-dev/googler-web/internal/watcher"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses command-line flags, loads configuration and either runs the terminal login or
// serves the web host until it receives a shutdown signal.
func main() {
	fmt.Printf("googler-web %s\n", buildinfo.String())

	var login bool
	var noBrowser bool
	var oauthCallbackPort int
	var configPath string
	var tuiMode bool

	flag.BoolVar(&login, "login", false, "Sign in with Google from the terminal")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.IntVar(&oauthCallbackPort, "oauth-callback-port", 0, "Override the local OAuth callback port (defaults to the configured port)")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&tuiMode, "tui", false, "Show the terminal login in an interactive UI")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	configFilePath := strings.TrimSpace(configPath)
	if configFilePath == "" {
		base := util.WritablePath()
		if base == "" {
			base = wd
		}
		configFilePath = filepath.Join(base, "config.yaml")
		if _, statErr := os.Stat(configFilePath); errors.Is(statErr, os.ErrNotExist) {
			examplePath := filepath.Join(wd, "config.example.yaml")
			if errCopy := misc.CopyConfigTemplate(examplePath, configFilePath); errCopy != nil {
				log.Errorf("failed to bootstrap config: %v", errCopy)
				return
			}
			log.Infof("config initialized from template: %s", configFilePath)
		}
	}

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}

	util.SetLogLevel(cfg)
	if errLog := logging.ConfigureLogOutput(cfg); errLog != nil {
		log.Errorf("failed to configure log output: %v", errLog)
		return
	}

	resolvedAuthDir, errResolve := util.ResolveAuthDir(cfg.AuthDir)
	if errResolve != nil {
		log.Errorf("failed to resolve auth directory: %v", errResolve)
		return
	}
	cfg.AuthDir = resolvedAuthDir

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	opened, errOpen := session.Open(openCtx, session.SettingsFromEnv(os.LookupEnv), cfg, cfg.AuthDir)
	cancelOpen()
	if errOpen != nil {
		log.Errorf("failed to open session store: %v", errOpen)
		return
	}
	defer func() {
		if errClose := opened.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close session store")
		}
	}()
	log.WithField("backend", opened.Backend).Info("session store ready")

	if login {
		cmd.DoLogin(cfg, opened.Store, &cmd.LoginOptions{
			NoBrowser:    noBrowser,
			CallbackPort: oauthCallbackPort,
			UseTUI:       tuiMode,
		})
		return
	}

	if errRun := run(cfg, configFilePath, opened.Store); errRun != nil {
		log.Errorf("web host stopped: %v", errRun)
	}
}

// run serves the web host and hot-reloads the config until SIGINT or SIGTERM.
func run(cfg *config.Config, configFilePath string, store session.Store) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg, store)

	fileWatcher, err := watcher.NewWatcher(configFilePath, func(newCfg *config.Config) {
		if errLog := logging.ConfigureLogOutput(newCfg); errLog != nil {
			log.WithError(errLog).Warn("failed to reconfigure log output")
		}
		server.UpdateConfig(newCfg)
	})
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	fileWatcher.SetConfig(cfg)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		if errStart := fileWatcher.Start(groupCtx); errStart != nil {
			log.WithError(errStart).Warn("config hot reload disabled")
			return nil
		}
		<-groupCtx.Done()
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down web host")
		if errStop := fileWatcher.Stop(); errStop != nil {
			log.WithError(errStop).Debug("config watcher stop error")
		}
		return server.Stop(context.WithoutCancel(groupCtx))
	})
	return group.Wait()
}
