package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"econstats-engine/internal/domain"

	"github.com/gofrs/flock"
)

const (
	Ext           = ".qwi"
	AggregateFile = "USA_DATA" + Ext
)

var ErrLocked = errors.New("settings store is locked by another run")

// Store is the pair of descriptor directories: committed holds the settings
// the download step replays, pending holds freshly generated ones awaiting
// reconciliation.
type Store struct {
	Committed string
	Pending   string

	lock *flock.Flock
}

func Open(committed, pending, lockPath string) (*Store, error) {
	for _, d := range []string{committed, pending} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("settings dir %s: %w", d, err)
		}
	}
	return &Store{
		Committed: committed,
		Pending:   pending,
		lock:      flock.New(lockPath),
	}, nil
}

// Lock takes the cross-process lock, retrying until ctx is done.
func (s *Store) Lock(ctx context.Context) (unlock func(), err error) {
	ok, err := s.lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrLocked, err)
		}
		return nil, fmt.Errorf("settings lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// List returns the descriptor file names in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), Ext) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CommittedEmpty() (bool, error) {
	names, err := List(s.Committed)
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

func (s *Store) CommittedFiles() ([]string, error) {
	names, err := List(s.Committed)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(s.Committed, n))
	}
	return out, nil
}

func (s *Store) clearPending() (int, error) {
	names, err := List(s.Pending)
	if err != nil {
		return 0, err
	}
	for _, n := range names {
		if err := os.Remove(filepath.Join(s.Pending, n)); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}

func Encode(d domain.JobDescriptor) ([]byte, error) {
	return json.MarshalIndent(d, "", "    ")
}

func ReadDescriptor(path string) (domain.JobDescriptor, error) {
	var d domain.JobDescriptor
	b, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return d, nil
}

func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// move renames src to dst, copying when the two live on different devices.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
