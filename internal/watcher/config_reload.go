// config_reload.go implements debounced configuration hot reload.
// It detects material changes and hands the new config to the reload callback.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/util"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.configReloadMu.Unlock()
}

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(w.debounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) reloadConfigIfChanged() {
	newHash, err := fileHash(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if newHash == "" {
		log.Debugf("ignoring empty config file write event")
		return
	}

	w.mu.RLock()
	currentHash := w.lastConfigHash
	w.mu.RUnlock()
	if currentHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	if w.reloadConfig() {
		w.mu.Lock()
		w.lastConfigHash = newHash
		w.mu.Unlock()
	}
}

func (w *Watcher) reloadConfig() bool {
	newConfig, errLoadConfig := config.LoadConfig(w.configPath)
	if errLoadConfig != nil {
		log.Errorf("failed to reload config: %v", errLoadConfig)
		return false
	}
	if errValidate := newConfig.Validate(); errValidate != nil {
		log.Errorf("reloaded config is invalid, keeping the current one: %v", errValidate)
		return false
	}
	if resolvedAuthDir, errResolveAuthDir := util.ResolveAuthDir(newConfig.AuthDir); errResolveAuthDir != nil {
		log.Errorf("failed to resolve auth directory from config: %v", errResolveAuthDir)
	} else {
		newConfig.AuthDir = resolvedAuthDir
	}

	w.mu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.mu.Unlock()

	if oldConfig != nil {
		details := configChangeDetails(oldConfig, newConfig)
		if len(details) > 0 {
			log.Debugf("config changes detected:")
			for _, d := range details {
				log.Debugf("  %s", d)
			}
		} else {
			log.Debugf("no material config field changes detected")
		}
	}

	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	log.Info("config successfully reloaded")
	return true
}

// configChangeDetails lists the changed settings. Secrets are masked.
func configChangeDetails(oldCfg, newCfg *config.Config) []string {
	var details []string
	add := func(name string, before, after any) {
		if before != after {
			details = append(details, fmt.Sprintf("%s: %v -> %v", name, before, after))
		}
	}
	add("host", oldCfg.Host, newCfg.Host)
	add("port", oldCfg.Port, newCfg.Port)
	add("debug", oldCfg.Debug, newCfg.Debug)
	add("logging-to-file", oldCfg.LoggingToFile, newCfg.LoggingToFile)
	add("logs-max-total-size-mb", oldCfg.LogsMaxTotalSizeMB, newCfg.LogsMaxTotalSizeMB)
	add("auth-dir", oldCfg.AuthDir, newCfg.AuthDir)
	add("proxy-url", util.HideSecret(oldCfg.ProxyURL), util.HideSecret(newCfg.ProxyURL))
	add("exchange.endpoint", oldCfg.Exchange.Endpoint, newCfg.Exchange.Endpoint)
	add("exchange.timeout-seconds", oldCfg.Exchange.TimeoutSeconds, newCfg.Exchange.TimeoutSeconds)
	add("exchange.max-body-bytes", oldCfg.Exchange.MaxBodyBytes, newCfg.Exchange.MaxBodyBytes)
	add("routes.callback", oldCfg.Routes.Callback, newCfg.Routes.Callback)
	add("routes.landing", oldCfg.Routes.Landing, newCfg.Routes.Landing)
	add("routes.login", oldCfg.Routes.Login, newCfg.Routes.Login)
	add("login.authorize-url", oldCfg.Login.AuthorizeURL, newCfg.Login.AuthorizeURL)
	add("session.backend", oldCfg.Session.Backend, newCfg.Session.Backend)
	add("session.cookie-name", oldCfg.Session.CookieName, newCfg.Session.CookieName)
	add("session.ttl-minutes", oldCfg.Session.TTLMinutes, newCfg.Session.TTLMinutes)
	add("session.secure-cookie", oldCfg.Session.SecureCookie, newCfg.Session.SecureCookie)
	return details
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
