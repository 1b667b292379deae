package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
)

// EnvPrefix is prepended to every environment override, e.g. PORTAL_HTTP_PORT.
const EnvPrefix = "PORTAL"

// Rate limit key strategies.
const (
	KeyIP      = "ip"
	KeyIPRoute = "ip_route"
)

// Config captures runtime configuration from the config file and environment.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	FrontendDir  string
	LogDir       string
	Debug        bool
	Security     SecurityConfig
}

// SecurityConfig configures the request security pipeline.
type SecurityConfig struct {
	TrustedOrigins []string
	BlockedIPs     []string
	TrustProxy     bool
	SessionSecret  string
	// GeneratedSecret is set when no secret was configured and a random one
	// was created; sessions will not survive a restart.
	GeneratedSecret  bool
	SessionTTL       time.Duration
	EventCapacity    int
	EventMaxAge      time.Duration
	SweepSchedule    string
	InspectionMode   string
	ExcludedPrefixes []string
	AlertURLs        []string
	AlertTypes       []string
	RateLimits       map[string]RateLimitConfig
}

// RateLimitConfig is one named fixed-window policy.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	Key         string
}

// IsDevelopment reports whether the portal runs in a development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

var defaultRateLimits = map[string]RateLimitConfig{
	security.PolicyStrict:  {Window: time.Minute, MaxRequests: 10, Key: KeyIP},
	security.PolicyAuth:    {Window: 15 * time.Minute, MaxRequests: 5, Key: KeyIP},
	security.PolicyDefault: {Window: time.Minute, MaxRequests: 100, Key: KeyIP},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("http_port", "8080")
	v.SetDefault("db_path", filepath.Join("data", "portal.db"))
	v.SetDefault("frontend_dir", filepath.Clean(filepath.Join("..", "frontend", "dist")))
	v.SetDefault("log_dir", filepath.Join("data", "logs"))
	v.SetDefault("debug", false)

	v.SetDefault("security.trusted_origins", []string{})
	v.SetDefault("security.blocked_ips", []string{})
	v.SetDefault("security.trust_proxy", false)
	v.SetDefault("security.session_secret", "")
	v.SetDefault("security.session_ttl", 24*time.Hour)
	v.SetDefault("security.event_capacity", security.DefaultEventCapacity)
	v.SetDefault("security.event_max_age", 24*time.Hour)
	v.SetDefault("security.sweep_schedule", "@every 1m")
	v.SetDefault("security.inspection_mode", security.InspectionMonitor)
	v.SetDefault("security.excluded_prefixes", []string{"/api", "/assets", "/_next/static", "/_next/image", "/favicon.ico"})
	v.SetDefault("security.alert_urls", []string{})
	v.SetDefault("security.alert_types", []string{})
	for name, rl := range defaultRateLimits {
		prefix := "security.rate_limits." + name + "."
		v.SetDefault(prefix+"window", rl.Window)
		v.SetDefault(prefix+"max_requests", rl.MaxRequests)
		v.SetDefault(prefix+"key", rl.Key)
	}
}

// Load reads the optional YAML file at path, applies PORTAL_* environment
// overrides and falls back to defaults so the server can boot with zero
// configuration.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Environment:  strings.ToLower(v.GetString("env")),
		HTTPPort:     v.GetString("http_port"),
		DatabasePath: v.GetString("db_path"),
		FrontendDir:  v.GetString("frontend_dir"),
		LogDir:       v.GetString("log_dir"),
		Debug:        v.GetBool("debug"),
		Security: SecurityConfig{
			TrustedOrigins:   splitList(v.GetStringSlice("security.trusted_origins")),
			BlockedIPs:       splitList(v.GetStringSlice("security.blocked_ips")),
			TrustProxy:       v.GetBool("security.trust_proxy"),
			SessionSecret:    v.GetString("security.session_secret"),
			SessionTTL:       v.GetDuration("security.session_ttl"),
			EventCapacity:    v.GetInt("security.event_capacity"),
			EventMaxAge:      v.GetDuration("security.event_max_age"),
			SweepSchedule:    v.GetString("security.sweep_schedule"),
			InspectionMode:   security.NormalizeInspectionMode(v.GetString("security.inspection_mode")),
			ExcludedPrefixes: splitList(v.GetStringSlice("security.excluded_prefixes")),
			AlertURLs:        splitList(v.GetStringSlice("security.alert_urls")),
			AlertTypes:       splitList(v.GetStringSlice("security.alert_types")),
		},
	}

	limits, err := loadRateLimits(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Security.RateLimits = limits

	if cfg.Security.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.Security.SessionSecret = secret
		cfg.Security.GeneratedSecret = true
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	return cfg, nil
}

// loadRateLimits reads every policy under security.rate_limits one key at a
// time so environment overrides apply to nested values.
func loadRateLimits(v *viper.Viper) (map[string]RateLimitConfig, error) {
	names := make(map[string]struct{})
	for name := range defaultRateLimits {
		names[name] = struct{}{}
	}
	for name := range v.GetStringMap("security.rate_limits") {
		names[strings.ToLower(name)] = struct{}{}
	}

	limits := make(map[string]RateLimitConfig, len(names))
	for name := range names {
		prefix := "security.rate_limits." + name + "."
		rl := RateLimitConfig{
			Window:      v.GetDuration(prefix + "window"),
			MaxRequests: v.GetInt(prefix + "max_requests"),
			Key:         strings.ToLower(v.GetString(prefix + "key")),
		}
		if rl.Key == "" {
			rl.Key = KeyIP
		}
		if rl.Key != KeyIP && rl.Key != KeyIPRoute {
			return nil, fmt.Errorf("rate limit %q: unknown key strategy %q", name, rl.Key)
		}
		if rl.Window <= 0 || rl.MaxRequests <= 0 {
			return nil, fmt.Errorf("rate limit %q: window and max_requests must be positive", name)
		}
		limits[name] = rl
	}
	return limits, nil
}

// ToSecurityOptions converts the configuration into security.State options.
func (c Config) ToSecurityOptions() security.Options {
	res := security.IPResolver{TrustProxy: c.Security.TrustProxy}

	names := make([]string, 0, len(c.Security.RateLimits))
	for name := range c.Security.RateLimits {
		names = append(names, name)
	}
	sort.Strings(names)

	policies := make([]security.Policy, 0, len(names))
	for _, name := range names {
		rl := c.Security.RateLimits[name]
		key := security.KeyByIP(res)
		if rl.Key == KeyIPRoute {
			key = security.KeyByIPAndRoute(res)
		}
		policies = append(policies, security.Policy{
			Name:        name,
			Window:      rl.Window,
			MaxRequests: rl.MaxRequests,
			Key:         key,
		})
	}

	return security.Options{
		TrustProxy:     c.Security.TrustProxy,
		TrustedOrigins: c.Security.TrustedOrigins,
		BlockedIPs:     c.Security.BlockedIPs,
		Policies:       policies,
		EventCapacity:  c.Security.EventCapacity,
		InspectionMode: c.Security.InspectionMode,
	}
}

// splitList flattens comma-separated entries so env values like
// "a,b" and YAML lists behave the same.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
