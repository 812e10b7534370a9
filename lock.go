package csvpack

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/zeebo/blake3"
)

// lockPath returns the lock file guarding the directory at abs.
func lockPath(lockDir, abs string) string {
	sum := blake3.Sum256([]byte(abs))
	return filepath.Join(lockDir, "csvpack-"+hex.EncodeToString(sum[:8])+".lock")
}

// lockDirs takes an exclusive advisory lock for every directory so two runs
// cannot convert the same tree at once. The returned function releases them.
func lockDirs(lockDir string, dirs []string) (func(), error) {
	var held []*flock.Flock
	release := func() {
		for _, fl := range held {
			fl.Unlock()
		}
	}

	for _, dir := range dirs {
		fl := flock.New(lockPath(lockDir, dir))
		ok, err := fl.TryLock()
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		if err != nil {
			release()
			if errors.Is(err, ErrLocked) {
				return nil, err
			}
			return nil, fmt.Errorf("locking %s: %w", dir, err)
		}
		held = append(held, fl)
	}
	return release, nil
}
