// Package config loads fsrs process configuration in three layers: built-in
// defaults, an optional YAML file and FSRS_* environment variables, in
// increasing priority.
//
//	scheduler:
//	  desired_retention: 0.9
//	  learning_steps: [1m, 10m]
//	server:
//	  listen: ":8080"
//
// The same keys can be set from the environment, e.g.
// FSRS_SCHEDULER_DESIRED_RETENTION=0.85 or
// FSRS_SCHEDULER_LEARNING_STEPS=1m,10m,1h.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/internal/logging"
	"github.com/sky-flux/fsrs/internal/validation"
)

// Config is the full process configuration.
type Config struct {
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// SchedulerConfig is the file/env form of fsrs.SchedulerConfig.
type SchedulerConfig struct {
	Weights          []float64 `koanf:"weights" validate:"weights"`
	WeightsFile      string    `koanf:"weights_file"`
	DesiredRetention float64   `koanf:"desired_retention" validate:"gt=0,lt=1"`
	MaximumInterval  int       `koanf:"maximum_interval" validate:"gte=1,lte=106751"`
	EnableFuzzing    bool      `koanf:"enable_fuzzing"`
	LearningSteps    []string  `koanf:"learning_steps" validate:"min=1,dive,step"`
	RelearningSteps  []string  `koanf:"relearning_steps" validate:"dive,step"`
	// StrictBounds rejects weights outside the optimizer bounds.
	StrictBounds bool `koanf:"strict_bounds"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Listen          string        `koanf:"listen" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"` // requests per window per client; 0 disables
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	MaxBatch        int           `koanf:"max_batch" validate:"gte=1"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"gte=1024"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			DesiredRetention: fsrs.DefaultDesiredRetention,
			MaximumInterval:  fsrs.DefaultMaximumInterval,
			LearningSteps:    fsrs.FormatSteps(fsrs.DefaultLearningSteps()),
			RelearningSteps:  fsrs.FormatSteps(fsrs.DefaultRelearningSteps()),
		},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
			RateLimitWindow: time.Minute,
			MaxBatch:        1000,
			MaxBodyBytes:    4 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	if c.Scheduler.WeightsFile != "" && len(c.Scheduler.Weights) > 0 {
		return errors.New("scheduler.weights and scheduler.weights_file are mutually exclusive")
	}
	return nil
}

// Options converts the section for logging.Init.
func (c LoggingConfig) Options() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, Caller: c.Caller}
}

// Engine converts the section into an fsrs.SchedulerConfig, reading the
// weights file when one is set.
func (c SchedulerConfig) Engine() (fsrs.SchedulerConfig, error) {
	weights := fsrs.WeightSet(c.Weights)
	if c.WeightsFile != "" {
		w, err := ReadWeightsFile(c.WeightsFile)
		if err != nil {
			return fsrs.SchedulerConfig{}, err
		}
		weights = w
	}
	if len(weights) == 0 {
		weights = nil
	}
	if weights != nil && c.StrictBounds {
		if err := weights.CheckBounds(); err != nil {
			return fsrs.SchedulerConfig{}, err
		}
	}

	ls, err := fsrs.ParseSteps(c.LearningSteps)
	if err != nil {
		return fsrs.SchedulerConfig{}, fmt.Errorf("scheduler.learning_steps: %w", err)
	}
	rs, err := fsrs.ParseSteps(c.RelearningSteps)
	if err != nil {
		return fsrs.SchedulerConfig{}, fmt.Errorf("scheduler.relearning_steps: %w", err)
	}
	if rs == nil {
		rs = []time.Duration{}
	}

	return fsrs.SchedulerConfig{
		Weights:          weights,
		DesiredRetention: c.DesiredRetention,
		LearningSteps:    ls,
		RelearningSteps:  rs,
		MaximumInterval:  c.MaximumInterval,
		EnableFuzzing:    c.EnableFuzzing,
	}, nil
}

// NewScheduler builds a scheduler from the section.
func (c SchedulerConfig) NewScheduler() (*fsrs.Scheduler, error) {
	cfg, err := c.Engine()
	if err != nil {
		return nil, err
	}
	return fsrs.NewScheduler(cfg)
}

// weightsDoc is the mapping form of a weights file.
type weightsDoc struct {
	Weights []float64 `yaml:"weights"`
}

// ReadWeightsFile reads a YAML weight table. The file holds either a bare
// sequence of numbers or a mapping with a "weights" key.
func ReadWeightsFile(path string) (fsrs.WeightSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	var list []float64
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, validateWeights(path, list)
	}
	var doc weightsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse weights file %s: %w", path, err)
	}
	return doc.Weights, validateWeights(path, doc.Weights)
}

func validateWeights(path string, w fsrs.WeightSet) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("weights file %s: %w", path, err)
	}
	return nil
}
