package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Config represents the application configuration
type Config struct {
	// HooksDir is the directory scanned for script implementations.
	HooksDir string `yaml:"hooks_dir,omitempty" env:"HOOKRUN_HOOKS_DIR"`

	// DefaultMode applies to scripts whose filename carries no mode marker.
	DefaultMode Mode `yaml:"default_mode,omitempty" env:"HOOKRUN_DEFAULT_MODE"`

	// FinalHook names the end-of-life hook. When AutoFinalHook is set, the
	// engine installs it into the signal registry so it runs even when the
	// process is interrupted.
	FinalHook     string `yaml:"final_hook,omitempty" env:"HOOKRUN_FINAL_HOOK"`
	AutoFinalHook bool   `yaml:"auto_final_hook,omitempty" env:"HOOKRUN_AUTO_FINAL_HOOK"`

	// EnvFile optionally seeds the coordinator environment from a dotenv file.
	EnvFile string `yaml:"env_file,omitempty" env:"HOOKRUN_ENV_FILE"`

	// LogTags lists the diagnostic channels to enable.
	LogTags []string `yaml:"log_tags,omitempty" env:"HOOKRUN_LOG_TAGS" envSeparator:","`

	// Hooks declares hook names and optional static command implementations.
	Hooks []HookConfig `yaml:"hooks,omitempty"`
}

// Validate checks field values that yaml/env parsing cannot.
func (c *Config) Validate() error {
	switch c.DefaultMode {
	case "", ModeExec, ModeSource:
	default:
		return goerr.New("default_mode must be exec or source", goerr.V("mode", string(c.DefaultMode)))
	}
	for _, h := range c.Hooks {
		if err := ValidateHookName(h.Name); err != nil {
			return goerr.Wrap(err, "invalid hook declaration in config")
		}
	}
	return nil
}

// ResolvedDefaultMode returns DefaultMode, falling back to exec.
func (c *Config) ResolvedDefaultMode() Mode {
	if c.DefaultMode == "" {
		return ModeExec
	}
	return c.DefaultMode
}

// HookConfig declares one hook and its statically configured implementations.
type HookConfig struct {
	Name            string       `yaml:"name"`
	Implementations []ImplConfig `yaml:"implementations,omitempty"`
}

// ImplConfig describes a command registered for a hook from configuration.
type ImplConfig struct {
	SortKey string                 `yaml:"sort_key"`
	Data    map[string]interface{} `yaml:",inline"`
}

// CommandImpl is the typed form of a command implementation.
type CommandImpl struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// ToCommandImpl converts ImplConfig to CommandImpl for type safety
func (ic *ImplConfig) ToCommandImpl() (*CommandImpl, error) {
	if ic.SortKey == "" {
		return nil, goerr.New("implementation requires 'sort_key' field")
	}

	command, ok := ic.Data["command"].(string)
	if !ok || command == "" {
		return nil, goerr.New("implementation requires 'command' field")
	}

	impl := &CommandImpl{Command: command}

	if argsValue, ok := ic.Data["args"]; ok {
		switch v := argsValue.(type) {
		case []interface{}:
			args := make([]string, len(v))
			for i, arg := range v {
				argStr, ok := arg.(string)
				if !ok {
					return nil, goerr.New("implementation 'args' must be string array")
				}
				args[i] = argStr
			}
			impl.Args = args
		case []string:
			impl.Args = v
		default:
			return nil, goerr.New("implementation 'args' must be an array")
		}
	}

	if timeoutValue, ok := ic.Data["timeout"]; ok {
		switch v := timeoutValue.(type) {
		case string:
			timeout, err := time.ParseDuration(v)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid timeout format")
			}
			impl.Timeout = timeout
		case time.Duration:
			impl.Timeout = v
		default:
			return nil, goerr.New("implementation 'timeout' must be a duration string")
		}
	}

	return impl, nil
}
