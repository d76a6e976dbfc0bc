package async

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/utils/errs"
)

// Dispatch runs handler in a new goroutine detached from ctx cancellation.
// The returned channel is closed when handler has returned.
//
// Behavior:
//   - The handler context keeps the ctxlog logger, tagged with "task"
//   - Panics are recovered and logged with the stack trace
//   - Errors returned by handler are reported via errs.Report
func Dispatch(ctx context.Context, task string, handler func(ctx context.Context) error) <-chan struct{} {
	newCtx := newBackgroundContext(ctx, task)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger := ctxlog.From(newCtx)
				logger.Error("panic in async handler",
					"recover", fmt.Sprint(r),
					"stack", string(stack))
			}
		}()

		if err := handler(newCtx); err != nil {
			errs.Report(newCtx, "error in async handler", goerr.Wrap(err, "async task failed", goerr.V("task", task)))
		}
	}()

	return done
}

// newBackgroundContext creates a new background context preserving the ctxlog logger
func newBackgroundContext(ctx context.Context, task string) context.Context {
	newCtx := context.Background()
	newCtx = ctxlog.With(newCtx, ctxlog.From(ctx).With("task", task))
	return newCtx
}
