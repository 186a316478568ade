package picker

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// GroupGoSafe runs fn in an errgroup goroutine and restarts it with
// exponential backoff if it panics. A panic must not take down the poll
// loop or the display worker's siblings; a returned error keeps normal
// errgroup semantics and cancels the group.
//
// Panics are reported on stderr rather than through the structured logger,
// since the logger itself may be what panicked.
func GroupGoSafe(ctx context.Context, group *errgroup.Group, name string, fn func(context.Context) error) {
	if group == nil || fn == nil {
		return
	}
	group.Go(func() error {
		backoff := 200 * time.Millisecond
		const maxBackoff = 30 * time.Second
		for {
			if ctx != nil && ctx.Err() != nil {
				return nil
			}

			err, panicked := runRecovered(ctx, name, fn)
			if !panicked {
				return err
			}

			time.Sleep(backoff + jitterFor(backoff))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	})
}

func runRecovered(ctx context.Context, name string, fn func(context.Context) error) (err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			_, _ = fmt.Fprintf(os.Stderr, "WARN: %s panicked: %v\n%s\n", name, r, debug.Stack())
		}
	}()
	return fn(ctx), false
}

// jitterFor derives a small deterministic jitter without math/rand.
func jitterFor(backoff time.Duration) time.Duration {
	max := backoff / 2
	if max <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() % int64(max))
}
