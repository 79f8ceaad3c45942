package player

import (
	"fmt"
	"os"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBufferSize is the decode buffer size and also how much of the
	// file the header parser looks at.
	DefaultBufferSize = 20 * 1024

	DefaultPriority  = 5
	DefaultStackSize = 4096

	// NoAffinity lets the scheduler run on any core.
	NoAffinity = -1
)

// Config configures a Player. Scalar fields can be loaded from YAML with
// LoadConfig; callbacks, UserData and Logger are set in code.
//
// Callbacks run on the scheduler goroutine. They may call Stop or start a new
// session from OnPlaybackEnd, but must not call Deinit or Close.
type Config struct {
	BufferSize int  `yaml:"buffer_size"`
	Strict     bool `yaml:"strict"`

	// Priority, StackSize and CoreID describe the scheduler task on
	// platforms that have such knobs. They are validated and logged only.
	Priority  int `yaml:"priority"`
	StackSize int `yaml:"stack_size"`
	CoreID    int `yaml:"core_id"`

	// OnVideoFrame receives each video chunk. frame is only valid until the
	// callback returns.
	OnVideoFrame func(frame []byte, info VideoFrameInfo, userData any) `yaml:"-"`

	// OnAudioFrame receives each audio chunk. frame is only valid until the
	// callback returns.
	OnAudioFrame func(frame []byte, info AudioFrameInfo, userData any) `yaml:"-"`

	// OnAudioFormat is called once per session, after the header is parsed,
	// when the file has an audio stream.
	OnAudioFormat func(format avi.AudioFormat, userData any) `yaml:"-"`

	// OnPlaybackEnd is called when a session ends. err is nil after the
	// last frame or an explicit stop.
	OnPlaybackEnd func(err error, userData any) `yaml:"-"`

	UserData any                `yaml:"-"`
	Logger   logrus.FieldLogger `yaml:"-"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		Priority:   DefaultPriority,
		StackSize:  DefaultStackSize,
		CoreID:     NoAffinity,
	}
}

// LoadConfig loads configuration from a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.validate()
}

// withDefaults fills zero values the way New expects them.
func (c Config) withDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Priority == 0 {
		c.Priority = DefaultPriority
	}
	if c.StackSize == 0 {
		c.StackSize = DefaultStackSize
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.BufferSize < avi.ListHeaderSize:
		return fmt.Errorf("%w: buffer_size %d", ErrInvalidConfig, c.BufferSize)
	case c.Priority < 0:
		return fmt.Errorf("%w: priority %d", ErrInvalidConfig, c.Priority)
	case c.StackSize < 0:
		return fmt.Errorf("%w: stack_size %d", ErrInvalidConfig, c.StackSize)
	case c.CoreID < NoAffinity:
		return fmt.Errorf("%w: core_id %d", ErrInvalidConfig, c.CoreID)
	}
	return nil
}
