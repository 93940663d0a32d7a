package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TierLimit is the sliding-window quota for one tier and operation class.
type TierLimit struct {
	MaxRequests   int `mapstructure:"maxRequests"`
	WindowSeconds int `mapstructure:"windowSeconds"`
}

// LimitsConfig maps tier name -> operation class -> quota.
type LimitsConfig struct {
	Tiers map[string]map[string]TierLimit `mapstructure:"tiers"`
}

func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		Tiers: map[string]map[string]TierLimit{
			"basic": {
				"payment":      {MaxRequests: 5, WindowSeconds: 60},
				"subscription": {MaxRequests: 10, WindowSeconds: 60},
				"usage":        {MaxRequests: 120, WindowSeconds: 60},
			},
			"plus": {
				"payment":      {MaxRequests: 30, WindowSeconds: 60},
				"subscription": {MaxRequests: 60, WindowSeconds: 60},
				"usage":        {MaxRequests: 1200, WindowSeconds: 60},
			},
		},
	}
}

// LimitsHolder serves the current quota table and hot-reloads it when the
// limits file changes on disk.
type LimitsHolder struct {
	current atomic.Value // holds LimitsConfig
}

func NewLimitsHolder() (*LimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paycore/config")
	v.AddConfigPath("/etc/paycore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &LimitsHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultLimitsConfig())
		return holder, nil
	}

	var cfg LimitsConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validateLimitsConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LimitsConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		if err := validateLimitsConfig(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticLimitsHolder wraps a fixed quota table, for tests.
func NewStaticLimitsHolder(cfg LimitsConfig) *LimitsHolder {
	holder := &LimitsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *LimitsHolder) Get() LimitsConfig {
	return h.current.Load().(LimitsConfig)
}

// Lookup resolves the quota for a tier and operation class, falling back to
// the basic tier when the tier is unknown.
func (h *LimitsHolder) Lookup(tier, operation string) (TierLimit, bool) {
	cfg := h.Get()
	ops, ok := cfg.Tiers[strings.ToLower(strings.TrimSpace(tier))]
	if !ok {
		ops, ok = cfg.Tiers["basic"]
		if !ok {
			return TierLimit{}, false
		}
	}
	limit, ok := ops[strings.ToLower(strings.TrimSpace(operation))]
	return limit, ok
}

func validateLimitsConfig(cfg LimitsConfig) error {
	if len(cfg.Tiers) == 0 {
		return errors.New("limits.tiers cannot be empty")
	}
	for tier, ops := range cfg.Tiers {
		for op, limit := range ops {
			if limit.MaxRequests <= 0 || limit.WindowSeconds <= 0 {
				return errors.New("limits." + tier + "." + op + " must be positive")
			}
		}
	}
	return nil
}
