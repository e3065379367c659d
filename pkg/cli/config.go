package cli

import (
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func DefineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
		},
		&cli.StringFlag{
			Name:  "hooks-dir",
			Usage: "Directory scanned for script implementations",
		},
	}
}

// overrideFromFlags applies command line flags on top of the loaded config.
func overrideFromFlags(cfg *model.Config, cmd *cli.Command) {
	if dir := cmd.String("hooks-dir"); dir != "" {
		cfg.HooksDir = dir
	}
}
