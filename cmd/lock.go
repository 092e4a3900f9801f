package main

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var errLocked = eris.New("another catalog-etl run holds the data directory lock")

// withLock runs fn while holding the lock file at path.
func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create lock dir")
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return eris.Wrap(err, "acquire lock")
	}
	if !ok {
		return eris.Wrap(errLocked, path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			zap.L().Warn("failed to release lock", zap.String("lock", path), zap.Error(err))
		}
	}()
	return fn()
}
