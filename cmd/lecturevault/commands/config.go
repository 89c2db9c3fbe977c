package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lecturevault/internal/download"
	"lecturevault/lib/configutil"
)

type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
}

type Config struct {
	BaseFolder        string      `json:"base_folder"`
	AuthFile          string      `json:"auth_file"`
	BaseUrl           string      `json:"base_url"`
	CacheUserHint     string      `json:"cache_user_hint"`
	RequestsPerSecond float64     `json:"requests_per_second"`
	CloudflareBypass  bool        `json:"cloudflare_bypass"`
	Workers           int         `json:"workers"`
	MaxErrors         int         `json:"max_errors"`
	FetchTimeoutSec   int         `json:"fetch_timeout_sec"`
	Retry             RetryConfig `json:"retry"`
}

func (c RetryConfig) policy() download.RetryPolicy {
	policy := download.DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		policy.MaxAttempts = c.MaxAttempts
	}
	if c.InitialDelayMs > 0 {
		policy.InitialDelay = time.Duration(c.InitialDelayMs) * time.Millisecond
	}
	if c.MaxDelayMs > 0 {
		policy.MaxDelay = time.Duration(c.MaxDelayMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		policy.Multiplier = c.Multiplier
	}
	return policy
}

// flagOverrides holds the flag values that were explicitly set on the command line.
type flagOverrides struct {
	baseFolder string
	authFile   string
	workers    int
}

// loadConfig reads the config file if there is one and lets explicitly set flags win over it.
// A missing config file is not an error.
func loadConfig(path string, overrides flagOverrides) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if overrides.baseFolder != "" {
		cfg.BaseFolder = overrides.baseFolder
	}
	if overrides.authFile != "" {
		cfg.AuthFile = overrides.authFile
	}
	if overrides.workers > 0 {
		cfg.Workers = overrides.workers
	}

	if cfg.BaseFolder == "" {
		cfg.BaseFolder = "udemyDownloads"
	}
	if cfg.AuthFile == "" {
		cfg.AuthFile = "Authentication.json"
	}
	return cfg, nil
}

// Layout is where everything a run produces is stored.
type Layout struct {
	Base      string
	Downloads string
	Notebooks string
	Ledger    string
	Log       string
}

// resolveLayout accepts either the base folder or its downloads directory.
func resolveLayout(baseFolder string) (Layout, error) {
	base, err := filepath.Abs(baseFolder)
	if err != nil {
		return Layout{}, err
	}
	if strings.EqualFold(filepath.Base(base), "downloads") {
		base = filepath.Dir(base)
	}
	return Layout{
		Base:      base,
		Downloads: filepath.Join(base, "downloads"),
		Notebooks: filepath.Join(base, "notebooks"),
		Ledger:    filepath.Join(base, "lecturevault.db"),
		Log:       filepath.Join(base, "lecturevault.log"),
	}, nil
}
