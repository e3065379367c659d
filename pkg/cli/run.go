package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"github.com/m-mizutani/hookrun/pkg/taglog"
	"github.com/m-mizutani/hookrun/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// ExitStatusError carries a hook's effective exit status to the process
// boundary so main can propagate it as the tool's exit code.
type ExitStatusError struct {
	Status int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("hook exited with status %d", e.Status)
}

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run all implementations of a hook",
		ArgsUsage: "<hook> [args...]",
		Action:    runAction,
	}
}

func newLogger(cmd *cli.Command) *slog.Logger {
	logLevel := slog.LevelWarn
	if cmd.Bool("debug") {
		logLevel = slog.LevelDebug
	} else if cmd.Bool("verbose") {
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// buildEngine loads configuration, seeds the coordinator environment and
// assembles the engine with configured hooks declared.
func buildEngine(cmd *cli.Command, logger *slog.Logger) (*usecase.Engine, error) {
	service := usecase.NewConfigService()

	var err error
	var cfg *model.Config
	if path := cmd.String("config"); path != "" {
		cfg, err = service.Load(path)
	} else {
		cfg, err = service.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	overrideFromFlags(cfg, cmd)

	environ, err := service.SeedEnviron(cfg)
	if err != nil {
		return nil, err
	}

	engine := usecase.NewEngine(cfg,
		usecase.WithEnviron(environ),
		usecase.WithTagLog(taglog.New(logger, cfg.LogTags...)),
	)
	if err := engine.RegisterConfigured(); err != nil {
		return nil, err
	}
	return engine, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd)
	ctx = ctxlog.With(ctx, logger)

	hook := cmd.Args().First()
	if hook == "" {
		return fmt.Errorf("usage: hookrun run <hook> [args...]")
	}

	engine, err := buildEngine(cmd, logger)
	if err != nil {
		return err
	}

	if engine.Config().AutoFinalHook && engine.Config().FinalHook != "" {
		if err := engine.InstallFinalHook(); err != nil {
			return err
		}
	}

	status, err := engine.Do(ctx, hook, cmd.Args().Tail()...)
	if err != nil {
		return err
	}
	if status != 0 {
		return &ExitStatusError{Status: status}
	}
	return nil
}
