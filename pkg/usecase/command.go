package usecase

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
)

const defaultCommandTimeout = 30 * time.Second

// CommandCallback wraps a configured command as a hook callback. The
// command's output goes to the hook context's writers, so in capture mode
// it lands in the invocation's buffer like any other implementation.
func CommandCallback(impl *model.CommandImpl) model.Callback {
	return func(ctx context.Context, hc *model.HookContext) (int, error) {
		logger := ctxlog.From(ctx)

		timeout := impl.Timeout
		if timeout == 0 {
			timeout = defaultCommandTimeout
		}
		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		// Expand environment variables in command and args
		command := os.ExpandEnv(impl.Command)
		args := make([]string, len(impl.Args))
		for i, arg := range impl.Args {
			args[i] = os.ExpandEnv(arg)
		}
		args = append(args, hc.Args...)

		var cmd *exec.Cmd
		if runtime.GOOS == "windows" && strings.HasSuffix(strings.ToLower(command), ".ps1") {
			psArgs := append([]string{"-ExecutionPolicy", "Bypass", "-File", command}, args...)
			cmd = exec.CommandContext(cmdCtx, "powershell", psArgs...) // #nosec G204 - command is from config file
		} else {
			cmd = exec.CommandContext(cmdCtx, command, args...) // #nosec G204 - command is from config file
		}

		cmd.Stdout = hc.Stdout
		cmd.Stderr = hc.Stderr
		if hc.Env != nil {
			cmd.Env = hc.Env.Snapshot()
		}

		logger.Debug("executing configured command",
			slog.String("command", command),
			slog.Any("args", args),
			slog.Duration("timeout", timeout),
		)

		if err := cmd.Run(); err != nil {
			if cmdCtx.Err() == context.DeadlineExceeded {
				return 124, nil
			}
			if exitErr, ok := err.(*exec.ExitError); ok {
				return exitErr.ExitCode(), nil
			}
			return 127, nil
		}
		return 0, nil
	}
}
