package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
)

// DefaultMiddleware replays every buffered line to the corresponding real
// stream unchanged and returns the exit status unmodified. For any hook
// with no middleware registered this is the observable behavior, making
// capture invisible to the outside.
func DefaultMiddleware(ctx context.Context, req *model.MiddlewareRequest) (int, error) {
	for _, line := range req.Buffer.Lines() {
		if err := replayLine(req, line); err != nil {
			return req.ExitStatus, err
		}
	}
	return req.ExitStatus, nil
}

func replayLine(req *model.MiddlewareRequest, line model.Line) error {
	var w io.Writer
	switch line.Stream {
	case model.StreamStderr:
		w = req.Stderr
	default:
		w = req.Stdout
	}
	_, err := fmt.Fprintln(w, line.Text)
	return err
}

// ContractMiddleware interprets contract directives embedded in captured
// output: env mutations are applied to the coordinator's environment,
// route and exit requests are recorded on the request's Flow, and every
// non-directive line is replayed exactly as DefaultMiddleware would.
// A malformed directive fails loudly as a contract error.
func ContractMiddleware(ctx context.Context, req *model.MiddlewareRequest) (int, error) {
	for _, line := range req.Buffer.Lines() {
		directive, ok, err := model.ParseDirective(line.Text)
		if err != nil {
			return req.ExitStatus, domain.ErrContract.Wrap(err, goerr.V("hook", req.Hook))
		}
		if !ok {
			if err := replayLine(req, line); err != nil {
				return req.ExitStatus, err
			}
			continue
		}

		switch directive.Kind {
		case model.DirectiveRoute:
			req.Flow.Route(directive.Path)
		case model.DirectiveExit:
			req.Flow.Exit(directive.Code)
		default:
			if err := directive.Apply(req.Env); err != nil {
				return req.ExitStatus, domain.ErrContract.Wrap(err, goerr.V("hook", req.Hook))
			}
		}
	}
	return req.ExitStatus, nil
}
