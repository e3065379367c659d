package usecase

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"gopkg.in/yaml.v3"
)

type ConfigService struct{}

// NewConfigService creates a new ConfigService instance
func NewConfigService() *ConfigService {
	return &ConfigService{}
}

func defaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "hookrun", "config.yml")
}

// LoadDefault loads the configuration from the default path. A missing
// file yields an empty configuration, not an error.
func (s *ConfigService) LoadDefault() (*model.Config, error) {
	return s.Load(defaultConfigPath())
}

// Load reads a YAML configuration file and applies HOOKRUN_* environment
// overrides on top of it.
func (s *ConfigService) Load(path string) (*model.Config, error) {
	cfg := &model.Config{}

	data, err := os.ReadFile(path) // #nosec G304 - path is the user's own config file
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, domain.ErrConfiguration.Wrap(err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.ErrConfiguration.Wrap(err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, domain.ErrConfiguration.Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ErrConfiguration.Wrap(err)
	}
	return cfg, nil
}

// SeedEnviron builds the coordinator environment: the process environment,
// optionally overlaid with the dotenv file named in configuration.
func (s *ConfigService) SeedEnviron(cfg *model.Config) (*model.Environ, error) {
	environ := model.EnvironFromOS()
	if cfg.EnvFile == "" {
		return environ, nil
	}

	vars, err := godotenv.Read(cfg.EnvFile)
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(err, goerr.V("env_file", cfg.EnvFile))
	}
	for name, value := range vars {
		environ.Set(name, value)
	}
	return environ, nil
}

// GenerateTemplate returns a commented configuration template.
func (s *ConfigService) GenerateTemplate() string {
	return `# hookrun configuration
#
# hooks_dir is scanned for script implementations. A script for hook H is
# a file named H-* or H_NN_* (NN = two-digit order hint). Scripts ending
# in .source run without capture or middleware.
hooks_dir: ~/.config/hookrun/hooks.d

# default_mode applies to scripts with no mode marker: exec or source.
default_mode: exec

# final_hook runs when the process ends. With auto_final_hook it is also
# installed as a signal handler so it runs on interrupt.
final_hook: end
auto_final_hook: true

# env_file optionally seeds the coordinator environment.
# env_file: ~/.config/hookrun/env

# log_tags enables diagnostic channels: engine, discovery, signal.
log_tags:
  - engine

# hooks declares hook names and optional command implementations.
hooks:
  - name: begin
  - name: build
    implementations:
      - sort_key: "10_lint"
        command: make
        args: ["lint"]
        timeout: 2m
  - name: end
`
}

// SaveTemplate writes the template to path, refusing to overwrite an
// existing file unless force is set.
func (s *ConfigService) SaveTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return goerr.Wrap(domain.ErrConfiguration, "config file already exists", goerr.V("path", path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}
	if err := os.WriteFile(path, []byte(s.GenerateTemplate()), 0600); err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}
	return nil
}
