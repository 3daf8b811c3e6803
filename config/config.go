package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/hlview/hl-dashboard/pkg/logger"
)

type Dashboard struct {
	HyperliquidWSURL   string        `toml:"hyperliquid_ws_url"`
	HyperliquidAPIURL  string        `toml:"hyperliquid_api_url"`
	HealthServerAddr   string        `toml:"health_server_addr"`
	Addresses          []string      `toml:"addresses"`
	BaselineCacheTTL   time.Duration `toml:"baseline_cache_ttl"`
	WorkerPoolSize     int           `toml:"worker_pool_size"`
	DebugFrames        bool          `toml:"debug_frames"`
	ReconnectMax       int           `toml:"reconnect_max_attempts"`
	ReconnectBaseDelay time.Duration `toml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `toml:"reconnect_max_delay"`
}

type NATS struct {
	Endpoint string `toml:"endpoint"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Config struct {
	Dashboard Dashboard `toml:"dashboard"`
	NATS      NATS      `toml:"nats"`
	Logger    Logger    `toml:"log"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		Dashboard: Dashboard{
			HyperliquidWSURL:   "wss://api.hyperliquid.xyz/ws",
			HyperliquidAPIURL:  "https://api.hyperliquid.xyz",
			HealthServerAddr:   "0.0.0.0:16810",
			BaselineCacheTTL:   30 * time.Second,
			WorkerPoolSize:     64,
			ReconnectMax:       10,
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  30 * time.Second,
		},
		NATS: NATS{
			Endpoint: "", // empty disables publishing
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Console:    false,
		},
	}
}

func Load(path string) error {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Init loads the config and starts a periodic reload (every 10s).
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

func Stop() {
	if stopChan != nil {
		close(stopChan)
	}
}

// reloadIfNeeded reloads only when the file's mtime moved forward.
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
