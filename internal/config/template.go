package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/ashish9731/email-responder/internal/types"
	yaml "gopkg.in/yaml.v3"
)

// LoadTemplate reads <templatesDir>/<name>.yaml
func LoadTemplate(templatesDir, name string) (*types.Config, error) {
	path := filepath.Join(templatesDir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	// Expand environment variables in the template
	expanded := os.ExpandEnv(string(data))

	template := &types.Config{}
	if err := yaml.Unmarshal([]byte(expanded), template); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return template, nil
}

// ApplyTemplate merges a template underneath cfg: fields cfg sets win
func ApplyTemplate(cfg *types.Config, templatesDir, name string) error {
	template, err := LoadTemplate(templatesDir, name)
	if err != nil {
		return err
	}

	// Create a copy of the template
	base := &types.Config{}
	if err := mergo.Merge(base, template); err != nil {
		return fmt.Errorf("failed to copy template: %w", err)
	}

	// Merge configuration over template
	if err := mergo.Merge(base, cfg, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config with template: %w", err)
	}

	// Copy merged result back to original config
	*cfg = *base
	return nil
}

// Marshal renders cfg as YAML, used by `config init`
func Marshal(cfg *types.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
