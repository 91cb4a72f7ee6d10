package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")
	errInvalidSlots       = errors.New("slots must be 2 or 3")
	errInvalidFrames      = errors.New("frames must be > 0")
	errInvalidPayload     = errors.New("payload must be > 0")
	errNegativeDuration   = errors.New("durations cannot be negative")
)

// Duration is a time.Duration written as "16ms" in config files.
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"16ms\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON writes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds all framebench options.
type Config struct {
	Slots           int      `json:"slots"`
	Frames          int      `json:"frames"`
	Payload         int      `json:"payload"`
	ProduceInterval Duration `json:"produce_interval"` //nolint:tagliatelle // snake_case for config file
	ConsumeInterval Duration `json:"consume_interval"` //nolint:tagliatelle // snake_case for config file
	Jitter          Duration `json:"jitter"`
	ReadTimeout     Duration `json:"read_timeout"` //nolint:tagliatelle // snake_case for config file
	Report          string   `json:"report,omitempty"`
	Verbose         bool     `json:"verbose,omitempty"`
}

// DefaultConfig returns a 60 Hz producer feeding a slightly slower consumer.
func DefaultConfig() Config {
	return Config{
		Slots:           3,
		Frames:          600,
		Payload:         1024,
		ProduceInterval: Duration(16 * time.Millisecond),
		ConsumeInterval: Duration(20 * time.Millisecond),
		Jitter:          Duration(2 * time.Millisecond),
		ReadTimeout:     Duration(100 * time.Millisecond),
	}
}

// LoadConfig merges, highest wins: defaults, the JSONC file at path (if
// non-empty), then apply (CLI overrides).
func LoadConfig(path string, apply func(*Config)) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return Config{}, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		cfg, err = parseConfig(cfg, data)
		if err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
		}
	}

	if apply != nil {
		apply(&cfg)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// parseConfig overlays the JSONC document onto base. Fields absent from
// the document keep their base value.
func parseConfig(base Config, data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&base); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return base, nil
}

func validateConfig(cfg Config) error {
	if cfg.Slots != 2 && cfg.Slots != 3 {
		return fmt.Errorf("%w, got %d", errInvalidSlots, cfg.Slots)
	}
	if cfg.Frames <= 0 {
		return errInvalidFrames
	}
	if cfg.Payload <= 0 {
		return errInvalidPayload
	}
	if cfg.ProduceInterval < 0 || cfg.ConsumeInterval < 0 || cfg.Jitter < 0 || cfg.ReadTimeout < 0 {
		return errNegativeDuration
	}
	return nil
}
