package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

// FileConfig is the YAML shape of a config file
type FileConfig struct {
	Run struct {
		Timeout     string `yaml:"timeout"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"run"`
	Output struct {
		Format string `yaml:"format"`
	} `yaml:"output"`
}

// RunOptions is the resolved engine input for one discovery run
type RunOptions struct {
	Region      string
	Profile     string
	Timeout     time.Duration
	Concurrency int
	Format      string
}

// Load resolves run options from the embedded defaults, optionally
// overridden by a config file. Flag values are applied by the caller on top.
func Load(configPath string) (*RunOptions, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(defaultConfigYAML, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	opts := &RunOptions{
		Concurrency: fc.Run.Concurrency,
		Format:      fc.Output.Format,
	}

	if fc.Run.Timeout != "" {
		timeout, err := time.ParseDuration(fc.Run.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", fc.Run.Timeout, err)
		}
		opts.Timeout = timeout
	}

	return opts, nil
}

// Validate checks option bounds before a run starts
func (o *RunOptions) Validate() error {
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	return nil
}
