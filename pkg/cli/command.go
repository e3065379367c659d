package cli

import (
	"github.com/urfave/cli/v3"
)

func NewCommand() *cli.Command {
	flags := append(DefineFlags(),
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
			Value: false,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable verbose logging",
			Value: false,
		},
	)

	return &cli.Command{
		Name:    "hookrun",
		Usage:   "Lifecycle hook execution engine",
		Version: "0.1.0",
		Description: `hookrun declares named extension points and runs their implementations
in one deterministic order: the inline implementation first, then registered
callbacks and scripts from the hooks directory merged by sort key.

Each implementation's output is captured and interpreted by the hook's
middleware; the run command's exit code is the hook's effective status.`,
		Flags: flags,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewListCommand(),
			NewConfigCommand(),
		},
	}
}
