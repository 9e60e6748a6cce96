package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type fileConfig struct {
	APIURL     string                `toml:"api_url"`
	TZ         string                `toml:"tz"`
	Output     string                `toml:"output"`
	Fields     string                `toml:"fields"`
	Labels     string                `toml:"labels"`
	Timeout    string                `toml:"timeout"`
	RateLimit  float64               `toml:"rate_limit"`
	ClosedDays []string              `toml:"closed_days"`
	Profile    string                `toml:"profile"`
	Profiles   map[string]fileConfig `toml:"profiles"`
}

const dotEnvFile = ".env"

func resolveGlobalOptions(cmd *cobra.Command, defaults *globalOptions) (*globalOptions, error) {
	resolved := *defaults

	// Missing .env is fine. Variables already in the environment win.
	_ = godotenv.Load(dotEnvFile)

	profile := firstNonEmpty(env("GOVA_PROFILE"), defaults.Profile)
	if flagValueChanged(cmd, "profile") {
		profile = defaults.Profile
	}
	if profile == "" {
		profile = "default"
	}
	resolved.Profile = profile

	userPath := defaultUserConfigPath()
	projectPath := ".gova.toml"
	configPath := firstNonEmpty(env("GOVA_CONFIG"), userPath)
	if flagValueChanged(cmd, "config") {
		configPath = defaults.Config
	}

	if cfg, ok := readConfigFile(userPath); ok {
		if err := applyFileConfig(&resolved, cfg, profile); err != nil {
			return nil, fmt.Errorf("%s: %w", userPath, err)
		}
	}
	if cfg, ok := readConfigFile(projectPath); ok {
		if err := applyFileConfig(&resolved, cfg, profile); err != nil {
			return nil, fmt.Errorf("%s: %w", projectPath, err)
		}
	}
	if configPath != "" && configPath != userPath && configPath != projectPath {
		if cfg, ok := readConfigFile(configPath); ok {
			if err := applyFileConfig(&resolved, cfg, profile); err != nil {
				return nil, fmt.Errorf("%s: %w", configPath, err)
			}
		}
	}

	if err := applyEnv(&resolved); err != nil {
		return nil, err
	}
	applyFlags(cmd, &resolved, defaults)

	if resolved.Config == "" {
		resolved.Config = configPath
	}
	if _, err := parseClosedDays(resolved.ClosedDays); err != nil {
		return nil, err
	}
	if resolved.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative")
	}
	return &resolved, nil
}

func applyFileConfig(dst *globalOptions, cfg fileConfig, profile string) error {
	if p, ok := cfg.Profiles[profile]; ok {
		cfg = mergeFileConfig(cfg, p)
	}
	if cfg.APIURL != "" {
		dst.APIURL = cfg.APIURL
	}
	if cfg.TZ != "" {
		dst.TZ = cfg.TZ
	}
	if cfg.Fields != "" {
		dst.Fields = cfg.Fields
	}
	if cfg.Labels != "" {
		dst.Labels = cfg.Labels
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
		}
		dst.Timeout = d
	}
	if cfg.RateLimit != 0 {
		dst.RateLimit = cfg.RateLimit
	}
	if len(cfg.ClosedDays) > 0 {
		dst.ClosedDays = strings.Join(cfg.ClosedDays, ",")
	}
	if cfg.Output != "" {
		setOutputMode(dst, cfg.Output)
	}
	return nil
}

func mergeFileConfig(base, overlay fileConfig) fileConfig {
	if overlay.APIURL != "" {
		base.APIURL = overlay.APIURL
	}
	if overlay.TZ != "" {
		base.TZ = overlay.TZ
	}
	if overlay.Output != "" {
		base.Output = overlay.Output
	}
	if overlay.Fields != "" {
		base.Fields = overlay.Fields
	}
	if overlay.Labels != "" {
		base.Labels = overlay.Labels
	}
	if overlay.Timeout != "" {
		base.Timeout = overlay.Timeout
	}
	if overlay.RateLimit != 0 {
		base.RateLimit = overlay.RateLimit
	}
	if len(overlay.ClosedDays) > 0 {
		base.ClosedDays = overlay.ClosedDays
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	return base
}

func setOutputMode(dst *globalOptions, v string) {
	switch strings.ToLower(v) {
	case "json":
		dst.JSON, dst.JSONL, dst.Plain = true, false, false
	case "jsonl":
		dst.JSON, dst.JSONL, dst.Plain = false, true, false
	case "plain":
		dst.JSON, dst.JSONL, dst.Plain = false, false, true
	}
}

func applyEnv(dst *globalOptions) error {
	if v := env("GOVA_API_URL"); v != "" {
		dst.APIURL = v
	}
	if v := env("GOVA_TIMEZONE"); v != "" {
		dst.TZ = v
	}
	if v := env("GOVA_FIELDS"); v != "" {
		dst.Fields = v
	}
	if v := env("GOVA_LABELS"); v != "" {
		dst.Labels = v
	}
	if v := env("GOVA_CLOSED_DAYS"); v != "" {
		dst.ClosedDays = v
	}
	if v := env("GOVA_OUTPUT"); v != "" {
		setOutputMode(dst, v)
	}
	if v := env("GOVA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GOVA_TIMEOUT: %w", err)
		}
		dst.Timeout = d
	}
	if v := env("GOVA_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid GOVA_RATE_LIMIT: %w", err)
		}
		dst.RateLimit = f
	}
	if v := env("GOVA_NO_INPUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			dst.NoInput = b
		}
	}
	return nil
}

func applyFlags(cmd *cobra.Command, dst, fromFlags *globalOptions) {
	copyIfChanged(cmd, "json", func() { dst.JSON = fromFlags.JSON })
	copyIfChanged(cmd, "jsonl", func() { dst.JSONL = fromFlags.JSONL })
	copyIfChanged(cmd, "plain", func() { dst.Plain = fromFlags.Plain })
	copyIfChanged(cmd, "fields", func() { dst.Fields = fromFlags.Fields })
	copyIfChanged(cmd, "quiet", func() { dst.Quiet = fromFlags.Quiet })
	copyIfChanged(cmd, "verbose", func() { dst.Verbose = fromFlags.Verbose })
	copyIfChanged(cmd, "no-color", func() { dst.NoColor = fromFlags.NoColor })
	copyIfChanged(cmd, "no-input", func() { dst.NoInput = fromFlags.NoInput })
	copyIfChanged(cmd, "profile", func() { dst.Profile = fromFlags.Profile })
	copyIfChanged(cmd, "config", func() { dst.Config = fromFlags.Config })
	copyIfChanged(cmd, "api-url", func() { dst.APIURL = fromFlags.APIURL })
	copyIfChanged(cmd, "tz", func() { dst.TZ = fromFlags.TZ })
	copyIfChanged(cmd, "labels", func() { dst.Labels = fromFlags.Labels })
	copyIfChanged(cmd, "timeout", func() { dst.Timeout = fromFlags.Timeout })
	copyIfChanged(cmd, "rate-limit", func() { dst.RateLimit = fromFlags.RateLimit })
	copyIfChanged(cmd, "closed", func() { dst.ClosedDays = fromFlags.ClosedDays })
	copyIfChanged(cmd, "schema-version", func() { dst.SchemaVersion = fromFlags.SchemaVersion })

	// If exactly one output mode flag is explicitly set, it overrides env/config output mode.
	modeSet := 0
	if flagValueChanged(cmd, "json") && fromFlags.JSON {
		modeSet++
	}
	if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
		modeSet++
	}
	if flagValueChanged(cmd, "plain") && fromFlags.Plain {
		modeSet++
	}
	if modeSet == 1 {
		if flagValueChanged(cmd, "json") && fromFlags.JSON {
			setOutputMode(dst, "json")
		}
		if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
			setOutputMode(dst, "jsonl")
		}
		if flagValueChanged(cmd, "plain") && fromFlags.Plain {
			setOutputMode(dst, "plain")
		}
	}
}

func copyIfChanged(cmd *cobra.Command, name string, fn func()) {
	if flagValueChanged(cmd, name) {
		fn()
	}
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

func readConfigFile(path string) (fileConfig, bool) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, false
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, false
	}
	return cfg, true
}

func defaultConfigDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "gova")
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "gova")
}

func defaultUserConfigPath() string {
	dir := defaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
