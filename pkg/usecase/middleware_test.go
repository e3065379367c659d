package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"github.com/m-mizutani/hookrun/pkg/usecase"
)

func TestDefaultMiddleware(t *testing.T) {
	t.Run("replays every line to its stream and keeps the status", func(t *testing.T) {
		buf := model.NewCaptureBuffer("capture.1.test")
		buf.Append(model.StreamStdout, "one")
		buf.Append(model.StreamStderr, "oops")
		buf.Append(model.StreamStdout, "contract:env:X=1")

		var stdout, stderr bytes.Buffer
		req := &model.MiddlewareRequest{
			Hook:       "build",
			ExitStatus: 5,
			Buffer:     buf,
			Env:        model.NewEnviron(),
			Flow:       &model.Flow{},
			Stdout:     &stdout,
			Stderr:     &stderr,
		}

		status, err := usecase.DefaultMiddleware(context.Background(), req)
		gt.NoError(t, err)
		gt.Equal(t, 5, status)
		// Default middleware is a pure replay: even contract-looking lines
		// pass through untouched.
		gt.Equal(t, "one\ncontract:env:X=1\n", stdout.String())
		gt.Equal(t, "oops\n", stderr.String())
		_, ok := req.Env.Get("X")
		gt.False(t, ok)
	})
}

func TestContractMiddleware(t *testing.T) {
	newRequest := func(lines ...model.Line) (*model.MiddlewareRequest, *bytes.Buffer, *bytes.Buffer) {
		buf := model.NewCaptureBuffer("capture.1.test")
		for _, line := range lines {
			buf.Append(line.Stream, line.Text)
		}
		var stdout, stderr bytes.Buffer
		return &model.MiddlewareRequest{
			Hook:       "begin",
			ExitStatus: 0,
			Buffer:     buf,
			Env:        model.NewEnviron(),
			Flow:       &model.Flow{},
			Stdout:     &stdout,
			Stderr:     &stderr,
		}, &stdout, &stderr
	}

	t.Run("env directives mutate only the named variable", func(t *testing.T) {
		req, stdout, _ := newRequest(
			model.Line{Stream: model.StreamStdout, Text: "plain output"},
			model.Line{Stream: model.StreamStdout, Text: "contract:env:PATH+=/x/y"},
		)
		req.Env.Set("PATH", "/usr/bin")
		req.Env.Set("HOME", "/home/u")

		status, err := usecase.ContractMiddleware(context.Background(), req)
		gt.NoError(t, err)
		gt.Equal(t, 0, status)

		path, _ := req.Env.Get("PATH")
		gt.Equal(t, "/usr/bin:/x/y", path)
		home, _ := req.Env.Get("HOME")
		gt.Equal(t, "/home/u", home)
		gt.Equal(t, "plain output\n", stdout.String())
	})

	t.Run("route and exit are recorded on the flow", func(t *testing.T) {
		req, _, _ := newRequest(
			model.Line{Stream: model.StreamStdout, Text: "contract:route:/opt/hooks/next"},
		)
		_, err := usecase.ContractMiddleware(context.Background(), req)
		gt.NoError(t, err)
		gt.Equal(t, model.FlowRoute, req.Flow.Action)
		gt.Equal(t, "/opt/hooks/next", req.Flow.RoutePath)

		req, _, _ = newRequest(
			model.Line{Stream: model.StreamStdout, Text: "contract:exit:7"},
		)
		_, err = usecase.ContractMiddleware(context.Background(), req)
		gt.NoError(t, err)
		gt.Equal(t, model.FlowExit, req.Flow.Action)
		gt.Equal(t, 7, req.Flow.ExitCode)
	})

	t.Run("malformed directive fails loudly", func(t *testing.T) {
		req, _, _ := newRequest(
			model.Line{Stream: model.StreamStdout, Text: "contract:exit:soon"},
		)
		_, err := usecase.ContractMiddleware(context.Background(), req)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, domain.ErrContract))
	})
}

func TestApplyMiddleware(t *testing.T) {
	t.Run("missing argument separator is a contract error", func(t *testing.T) {
		engine := usecase.NewEngine(nil)
		buf := model.NewCaptureBuffer("capture.1.test")

		_, err := engine.ApplyMiddleware(context.Background(), "begin", 0, buf, "arg1")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, domain.ErrContract))

		_, err = engine.ApplyMiddleware(context.Background(), "begin", 0, buf)
		gt.Error(t, err)
	})

	t.Run("separator then arguments is accepted", func(t *testing.T) {
		var stdout bytes.Buffer
		engine := usecase.NewEngine(nil, usecase.WithStdout(&stdout))
		buf := model.NewCaptureBuffer("capture.1.test")
		buf.Append(model.StreamStdout, "hello")

		status, err := engine.ApplyMiddleware(context.Background(), "begin", 4, buf, model.ArgSeparator, "arg1")
		gt.NoError(t, err)
		gt.Equal(t, 4, status)
		gt.Equal(t, "hello\n", stdout.String())
	})

	t.Run("middleware sees implementation arguments after the separator", func(t *testing.T) {
		engine := usecase.NewEngine(nil)
		var seen []string
		engine.SetMiddleware("begin", func(ctx context.Context, req *model.MiddlewareRequest) (int, error) {
			seen = req.Args
			return req.ExitStatus, nil
		})

		buf := model.NewCaptureBuffer("capture.1.test")
		_, err := engine.ApplyMiddleware(context.Background(), "begin", 0, buf, model.ArgSeparator, "a", "b")
		gt.NoError(t, err)
		gt.Equal(t, []string{"a", "b"}, seen)
	})
}
