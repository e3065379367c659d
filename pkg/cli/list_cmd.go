package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "Show declared hooks and their implementations",
		Action: listAction,
	}
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	engine, err := buildEngine(cmd, newLogger(cmd))
	if err != nil {
		return err
	}

	RenderHookList(engine.List())
	return nil
}
