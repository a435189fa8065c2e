package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("state is locked by another run")

// Lock takes an exclusive advisory lock on statePath+".lock" so two runs
// never load-reconcile-save the same state at once. With wait == 0 it fails
// immediately with ErrLocked; otherwise it retries until wait elapses.
func Lock(ctx context.Context, statePath string, wait time.Duration) (unlock func() error, err error) {
	fl := flock.New(statePath + ".lock")

	var ok bool
	if wait <= 0 {
		ok, err = fl.TryLock()
	} else {
		lctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		ok, err = fl.TryLockContext(lctx, 200*time.Millisecond)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}
