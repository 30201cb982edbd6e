// Package config handles configuration loading and validation for gestured.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"gestured/internal/gesture"
	"gestured/internal/input"
	"gestured/internal/logging"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Device selects the HCI socket to listen on.
	Device DeviceConfig `toml:"device" json:"device" yaml:"device"`

	// Timing holds the gesture deadlines.
	Timing TimingConfig `toml:"timing" json:"timing" yaml:"timing"`

	// Input configures the frame classifier.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Actions configures action execution.
	Actions ActionsConfig `toml:"actions" json:"actions" yaml:"actions"`

	// History configures the activation log.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// StrictSymbols rejects unknown symbol names in gesture sequences.
	// When false an unknown name compiles to an edge no input can follow.
	StrictSymbols bool `toml:"strict_symbols" json:"strict_symbols" yaml:"strict_symbols"`

	// Gestures are the configured sequences, in declaration order.
	Gestures []Gesture `toml:"gestures" json:"gestures" yaml:"gestures"`
}

// DeviceConfig selects the frame source.
type DeviceConfig struct {
	// Index is the HCI device index. 65535 means no specific device,
	// which is what the monitor channel expects.
	Index uint16 `toml:"index" json:"index" yaml:"index"`

	// Channel is "monitor" or "raw".
	Channel string `toml:"channel" json:"channel" yaml:"channel"`

	// PacketType keeps only frames whose first byte matches.
	// -1 disables the filter.
	PacketType int `toml:"packet_type" json:"packet_type" yaml:"packet_type"`
}

// TimingConfig holds gesture deadlines in milliseconds.
type TimingConfig struct {
	// SingleDelayMs is the wait after the first symbol of a gesture.
	SingleDelayMs int `toml:"single_delay_ms" json:"single_delay_ms" yaml:"single_delay_ms"`

	// ComboDelayMs is the wait after any later symbol.
	ComboDelayMs int `toml:"combo_delay_ms" json:"combo_delay_ms" yaml:"combo_delay_ms"`
}

// SingleDelay returns SingleDelayMs as a duration.
func (t TimingConfig) SingleDelay() time.Duration {
	return time.Duration(t.SingleDelayMs) * time.Millisecond
}

// ComboDelay returns ComboDelayMs as a duration.
func (t TimingConfig) ComboDelay() time.Duration {
	return time.Duration(t.ComboDelayMs) * time.Millisecond
}

// InputConfig configures the classifier.
type InputConfig struct {
	// InitialVolume is the assumed absolute volume before the first report.
	InitialVolume int `toml:"initial_volume" json:"initial_volume" yaml:"initial_volume"`
}

// ActionsConfig configures the executors.
type ActionsConfig struct {
	// Shell runs non-MPRIS actions as "<shell> -c <action>".
	Shell string `toml:"shell" json:"shell" yaml:"shell"`

	// MPRISPlayer is the bus name of the player for mpris: actions.
	// Empty picks the first player on the session bus.
	MPRISPlayer string `toml:"mpris_player" json:"mpris_player" yaml:"mpris_player"`

	// DryRun logs actions instead of running them.
	DryRun bool `toml:"dry_run" json:"dry_run" yaml:"dry_run"`
}

// HistoryConfig configures the SQLite activation log.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`

	// RetentionDays prunes older entries at startup. 0 keeps everything.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// Retention returns RetentionDays as a duration.
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is used when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB rotates the log file at this size. 0 never rotates.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated log files kept.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// Gesture binds a sequence of symbol names to an action.
type Gesture struct {
	Sequence []string `toml:"sequence" json:"sequence" yaml:"sequence"`
	Action   string   `toml:"action" json:"action" yaml:"action"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	logDefaults := logging.DefaultConfig()
	return &Config{
		Device: DeviceConfig{
			Index:      0xffff,
			Channel:    "monitor",
			PacketType: 0x05,
		},
		Timing: TimingConfig{
			SingleDelayMs: 800,
			ComboDelayMs:  2000,
		},
		Input: InputConfig{
			InitialVolume: int(input.DefaultVolume),
		},
		Actions: ActionsConfig{
			Shell: "bash",
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          DefaultHistoryPath(),
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logDefaults.FilePath,
			MaxSizeMB:  logDefaults.MaxSizeMB,
			MaxBackups: logDefaults.MaxBackups,
		},
		StrictSymbols: true,
	}
}

// ApplyEnvOverrides applies GESTURED_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("GESTURED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GESTURED_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GESTURED_DEVICE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("GESTURED_DEVICE: %w", err)
		}
		c.Device.Index = uint16(n)
	}
	if v := os.Getenv("GESTURED_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("GESTURED_DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GESTURED_DRY_RUN: %w", err)
		}
		c.Actions.DryRun = b
	}
	if v := os.Getenv("GESTURED_SHELL"); v != "" {
		c.Actions.Shell = v
	}
	return nil
}

// GestureSpecs converts the configured gestures for gesture.Build.
func (c *Config) GestureSpecs() []gesture.Spec {
	specs := make([]gesture.Spec, len(c.Gestures))
	for i, g := range c.Gestures {
		specs[i] = gesture.Spec{Sequence: g.Sequence, Action: g.Action}
	}
	return specs
}

// MatcherConfig returns the matcher timing derived from c.
func (c *Config) MatcherConfig() gesture.Config {
	mc := gesture.DefaultConfig()
	mc.SingleDelay = c.Timing.SingleDelay()
	mc.ComboDelay = c.Timing.ComboDelay()
	return mc
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	lc.MaxSizeMB = c.Logging.MaxSizeMB
	lc.MaxBackups = c.Logging.MaxBackups
	return lc, nil
}

// WriteTOML encodes c as TOML.
func (c *Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
