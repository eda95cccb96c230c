package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchConfig is the match.yaml file read once at startup.
type MatchConfig struct {
	Version int `yaml:"version"`
	Match   struct {
		ID            string       `yaml:"id"`
		Game          string       `yaml:"game"`
		Rounds        int          `yaml:"rounds"`
		Players       []SeatConfig `yaml:"players"`
		Deterministic bool         `yaml:"deterministic"`
	} `yaml:"match"`
	Timers struct {
		StageSec int `yaml:"stage_sec"`
	} `yaml:"timers"`
	Throttle struct {
		AutoResolveMS int     `yaml:"auto_resolve_ms"`
		ComputerMS    int     `yaml:"computer_ms"`
		TransitionMS  int     `yaml:"transition_ms"`
		PublishPerSec float64 `yaml:"publish_per_sec"`
		PublishBurst  int     `yaml:"publish_burst"`
	} `yaml:"throttle"`
	Limits struct {
		MaxOverRounds  int `yaml:"max_over_rounds"`
		ComputerRounds int `yaml:"computer_rounds"`
		IdleTimeoutSec int `yaml:"idle_timeout_sec"`
		MinSeats       int `yaml:"min_seats"`
		MaxSeats       int `yaml:"max_seats"`
	} `yaml:"limits"`
	Network struct {
		APIPort     int    `yaml:"api_port"`
		MQTTURL     string `yaml:"mqtt_url"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"network"`
}

// SeatConfig is a seat known before any roster arrives.
type SeatConfig struct {
	PlayerID uint64 `yaml:"player_id"`
	Name     string `yaml:"name"`
	Computer bool   `yaml:"computer"`
}

// Default returns a config with only the version set, so every accessor
// yields its default.
func Default() *MatchConfig {
	return &MatchConfig{Version: 1}
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *MatchConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// Game returns the configured game, defaulting to rps.
func (c *MatchConfig) Game() string {
	if c.Match.Game == "" {
		return "rps"
	}
	return c.Match.Game
}

// Rounds returns the number of rounds for round-based games, defaulting to 3.
func (c *MatchConfig) Rounds() int {
	if c.Match.Rounds <= 0 {
		return 3
	}
	return c.Match.Rounds
}

// StageTimer returns the per-stage timer, defaulting to 60s.
func (c *MatchConfig) StageTimer() int {
	if c.Timers.StageSec <= 0 {
		return 60
	}
	return c.Timers.StageSec
}

// Delays returns the throttle pauses. Unset values take the engine defaults.
func (c *MatchConfig) Delays() (autoResolve, computer, transition time.Duration) {
	autoResolve, computer, transition = time.Second, 500*time.Millisecond, time.Second
	if c.Throttle.AutoResolveMS > 0 {
		autoResolve = time.Duration(c.Throttle.AutoResolveMS) * time.Millisecond
	}
	if c.Throttle.ComputerMS > 0 {
		computer = time.Duration(c.Throttle.ComputerMS) * time.Millisecond
	}
	if c.Throttle.TransitionMS > 0 {
		transition = time.Duration(c.Throttle.TransitionMS) * time.Millisecond
	}
	return autoResolve, computer, transition
}

// PublishRate returns the outgoing message rate and burst, defaulting to 5/s burst 3.
func (c *MatchConfig) PublishRate() (float64, int) {
	perSec, burst := c.Throttle.PublishPerSec, c.Throttle.PublishBurst
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 3
	}
	return perSec, burst
}

// MaxOverRounds returns the auto-resolve round limit, defaulting to 64.
func (c *MatchConfig) MaxOverRounds() int {
	if c.Limits.MaxOverRounds <= 0 {
		return 64
	}
	return c.Limits.MaxOverRounds
}

// ComputerRounds returns how often computer seats are polled per event, defaulting to 16.
func (c *MatchConfig) ComputerRounds() int {
	if c.Limits.ComputerRounds <= 0 {
		return 16
	}
	return c.Limits.ComputerRounds
}

// IdleTimeout returns how long a human seat may stay silent, defaulting to 5 minutes.
func (c *MatchConfig) IdleTimeout() time.Duration {
	if c.Limits.IdleTimeoutSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Limits.IdleTimeoutSec) * time.Second
}

// SeatLimits returns the roster size bounds, defaulting to 1..8.
func (c *MatchConfig) SeatLimits() (min, max int) {
	min, max = c.Limits.MinSeats, c.Limits.MaxSeats
	if min <= 0 {
		min = 1
	}
	if max <= 0 {
		max = 8
	}
	return min, max
}

// TopicPrefix returns the MQTT topic root, defaulting to stageengine.
func (c *MatchConfig) TopicPrefix() string {
	if c.Network.TopicPrefix == "" {
		return "stageengine"
	}
	return c.Network.TopicPrefix
}

func LoadMatchConfig(path string) (*MatchConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg MatchConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported match.yaml version: %d", cfg.Version)
	}

	min, max := cfg.SeatLimits()
	if min > max {
		return nil, fmt.Errorf("limits.min_seats (%d) exceeds limits.max_seats (%d)", min, max)
	}

	seen := make(map[uint64]bool, len(cfg.Match.Players))
	for _, p := range cfg.Match.Players {
		if seen[p.PlayerID] {
			return nil, fmt.Errorf("duplicate player_id in match.players: %d", p.PlayerID)
		}
		seen[p.PlayerID] = true
	}

	return &cfg, nil
}
