package usecase_test

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/interfaces"
	"github.com/m-mizutani/hookrun/pkg/usecase"
)

func TestSignalRegistry(t *testing.T) {
	t.Run("dispatch runs legacy first then handlers LIFO", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		var order []string

		legacy := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "legacy")
			return nil
		}
		h1 := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "h1")
			return nil
		}
		h2 := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "h2")
			return nil
		}

		gt.NoError(t, reg.Register(syscall.SIGTERM, h1, interfaces.WithLegacy(legacy)))
		gt.NoError(t, reg.Register(syscall.SIGTERM, h2))

		reg.Dispatch(context.Background(), syscall.SIGTERM)
		gt.Equal(t, []string{"legacy", "h2", "h1"}, order)
	})

	t.Run("duplicate registration is rejected unless allowed", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		h := func(ctx context.Context, sig os.Signal) error { return nil }

		gt.NoError(t, reg.Register(syscall.SIGINT, h))
		err := reg.Register(syscall.SIGINT, h)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, domain.ErrRegistration))

		gt.NoError(t, reg.Register(syscall.SIGINT, h, interfaces.AllowDuplicates()))
	})

	t.Run("unregister removes handler and is a no-op otherwise", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		var calls int
		h := func(ctx context.Context, sig os.Signal) error {
			calls++
			return nil
		}

		gt.NoError(t, reg.Register(syscall.SIGHUP, h))
		reg.Unregister(syscall.SIGHUP, h)
		reg.Unregister(syscall.SIGHUP, h)

		reg.Dispatch(context.Background(), syscall.SIGHUP)
		gt.Equal(t, 0, calls)
	})

	t.Run("failing handler does not block remaining handlers", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		var order []string

		bad := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "bad")
			return errors.New("cleanup failed")
		}
		panicky := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "panicky")
			panic("boom")
		}
		good := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "good")
			return nil
		}

		gt.NoError(t, reg.Register(syscall.SIGTERM, good))
		gt.NoError(t, reg.Register(syscall.SIGTERM, panicky))
		gt.NoError(t, reg.Register(syscall.SIGTERM, bad))

		reg.Dispatch(context.Background(), syscall.SIGTERM)
		gt.Equal(t, []string{"bad", "panicky", "good"}, order)
	})

	t.Run("push then pop restores the exact handler list", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		var order []string

		h1 := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "h1")
			return nil
		}
		h2 := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "h2")
			return nil
		}
		scoped := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "scoped")
			return nil
		}

		gt.NoError(t, reg.Register(syscall.SIGTERM, h1))
		gt.NoError(t, reg.Register(syscall.SIGTERM, h2))

		reg.Push(syscall.SIGTERM)
		gt.Equal(t, 1, reg.Level())

		reg.Unregister(syscall.SIGTERM, h1)
		gt.NoError(t, reg.Register(syscall.SIGTERM, scoped))

		gt.NoError(t, reg.Pop(syscall.SIGTERM))
		gt.Equal(t, 0, reg.Level())

		reg.Dispatch(context.Background(), syscall.SIGTERM)
		gt.Equal(t, []string{"h2", "h1"}, order)
	})

	t.Run("pop without snapshot fails", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		err := reg.Pop()
		gt.Error(t, err)
		gt.True(t, errors.Is(err, domain.ErrSignal))
	})

	t.Run("restore clears the handler list", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		var calls int
		h := func(ctx context.Context, sig os.Signal) error {
			calls++
			return nil
		}

		gt.NoError(t, reg.Register(syscall.SIGUSR1, h))
		reg.Restore(syscall.SIGUSR1)

		reg.Dispatch(context.Background(), syscall.SIGUSR1)
		gt.Equal(t, 0, calls)
	})

	t.Run("restore also drops snapshot entries", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		var order []string

		old := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "old")
			return nil
		}
		fresh := func(ctx context.Context, sig os.Signal) error {
			order = append(order, "fresh")
			return nil
		}

		gt.NoError(t, reg.Register(syscall.SIGUSR1, old))
		reg.Push(syscall.SIGUSR1)
		reg.Restore(syscall.SIGUSR1)

		gt.NoError(t, reg.Register(syscall.SIGUSR1, fresh))
		gt.NoError(t, reg.Pop(syscall.SIGUSR1))

		reg.Dispatch(context.Background(), syscall.SIGUSR1)
		gt.Equal(t, []string{"fresh"}, order)
	})

	t.Run("nil handler is a registration error", func(t *testing.T) {
		reg := usecase.NewDetachedSignalRegistry(nil)
		gt.Error(t, reg.Register(syscall.SIGTERM, nil))
	})
}
