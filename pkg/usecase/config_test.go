package usecase_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"github.com/m-mizutani/hookrun/pkg/usecase"
)

func TestConfigService(t *testing.T) {
	t.Run("Load returns empty config when file doesn't exist", func(t *testing.T) {
		service := usecase.NewConfigService()
		config, err := service.Load(filepath.Join(t.TempDir(), "missing.yml"))
		gt.NoError(t, err)
		gt.NotNil(t, config)
		gt.Equal(t, model.ModeExec, config.ResolvedDefaultMode())
	})

	t.Run("Load parses yaml config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yml")
		content := `hooks_dir: /opt/hooks.d
default_mode: source
final_hook: end
auto_final_hook: true
log_tags:
  - engine
  - signal
hooks:
  - name: build
    implementations:
      - sort_key: "10_lint"
        command: make
        args: ["lint"]
`
		gt.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

		service := usecase.NewConfigService()
		config, err := service.Load(configPath)
		gt.NoError(t, err)
		gt.Equal(t, "/opt/hooks.d", config.HooksDir)
		gt.Equal(t, model.ModeSource, config.DefaultMode)
		gt.Equal(t, "end", config.FinalHook)
		gt.True(t, config.AutoFinalHook)
		gt.Equal(t, []string{"engine", "signal"}, config.LogTags)
		gt.Equal(t, 1, len(config.Hooks))
		gt.Equal(t, "build", config.Hooks[0].Name)
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yml")
		gt.NoError(t, os.WriteFile(configPath, []byte("hooks_dir: /from/file\n"), 0600))

		t.Setenv("HOOKRUN_HOOKS_DIR", "/from/env")

		service := usecase.NewConfigService()
		config, err := service.Load(configPath)
		gt.NoError(t, err)
		gt.Equal(t, "/from/env", config.HooksDir)
	})

	t.Run("invalid default mode is rejected", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yml")
		gt.NoError(t, os.WriteFile(configPath, []byte("default_mode: inline\n"), 0600))

		service := usecase.NewConfigService()
		_, err := service.Load(configPath)
		gt.Error(t, err)
	})

	t.Run("GenerateTemplate returns valid template", func(t *testing.T) {
		service := usecase.NewConfigService()
		template := service.GenerateTemplate()
		gt.NotEqual(t, "", template)
		gt.True(t, strings.Contains(template, "hooks_dir:"))
		gt.True(t, strings.Contains(template, "default_mode:"))
		gt.True(t, strings.Contains(template, "final_hook:"))
		gt.True(t, strings.Contains(template, "hooks:"))
	})

	t.Run("SaveTemplate creates file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")

		service := usecase.NewConfigService()
		err := service.SaveTemplate(configPath, false)
		gt.NoError(t, err)

		// Check file exists
		_, err = os.Stat(configPath)
		gt.NoError(t, err)

		// Check content
		content, err := os.ReadFile(configPath)
		gt.NoError(t, err)
		gt.True(t, strings.Contains(string(content), "hooks_dir:"))
	})

	t.Run("SaveTemplate fails without force when file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")

		service := usecase.NewConfigService()

		// Create file first time
		err := service.SaveTemplate(configPath, false)
		gt.NoError(t, err)

		// Try to create again without force
		err = service.SaveTemplate(configPath, false)
		gt.Error(t, err)

		// Try with force
		err = service.SaveTemplate(configPath, true)
		gt.NoError(t, err)
	})

	t.Run("SeedEnviron overlays dotenv file", func(t *testing.T) {
		tmpDir := t.TempDir()
		envPath := filepath.Join(tmpDir, "env")
		gt.NoError(t, os.WriteFile(envPath, []byte("SEEDED=from-dotenv\n"), 0600))

		service := usecase.NewConfigService()
		environ, err := service.SeedEnviron(&model.Config{EnvFile: envPath})
		gt.NoError(t, err)

		v, ok := environ.Get("SEEDED")
		gt.True(t, ok)
		gt.Equal(t, "from-dotenv", v)
	})

	t.Run("SeedEnviron fails on missing dotenv file", func(t *testing.T) {
		service := usecase.NewConfigService()
		_, err := service.SeedEnviron(&model.Config{EnvFile: "/nonexistent/env"})
		gt.Error(t, err)
	})
}
