package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/jgivc/modsync/internal/entity"
)

// ModStore is the slice of the mods storage the resolver needs.
type ModStore interface {
	Init() error
	Exists(name string) bool
	Remove(name string) error
	WriteFile(name string, data []byte) error
	Digest(name string) (string, error)
}

// Fetcher downloads the raw bytes behind an entry URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type resolver struct {
	store   ModStore
	fetcher Fetcher
}

// resolve produces exactly one outcome for the entry. REMOVE entries
// are ensured absent, everything else (REQUIRED or any free-form
// category) is ensured present.
func (r *resolver) resolve(ctx context.Context, e entity.Entry) entity.Outcome {
	if e.IsRemove() {
		return r.remove(e)
	}

	return r.ensure(ctx, e)
}

func (r *resolver) remove(e entity.Entry) entity.Outcome {
	if !r.store.Exists(e.Filename) {
		return entity.Outcome{Entry: e, Kind: entity.OutcomeUnchanged}
	}

	if err := r.store.Remove(e.Filename); err != nil {
		return failed(e, err.Error())
	}

	return entity.Outcome{Entry: e, Kind: entity.OutcomeRemoved}
}

func (r *resolver) ensure(ctx context.Context, e entity.Entry) entity.Outcome {
	if r.store.Exists(e.Filename) {
		// A present file without an expected digest is accepted as is.
		if !e.HasDigest() {
			return entity.Outcome{Entry: e, Kind: entity.OutcomeUnchanged}
		}

		actual, err := r.store.Digest(e.Filename)
		if err != nil {
			return failed(e, err.Error())
		}

		if strings.EqualFold(actual, e.SHA256) {
			return entity.Outcome{Entry: e, Kind: entity.OutcomeUnchanged}
		}

		// The divergent file is left in place, not re-downloaded.
		return failed(e, mismatch(e, actual))
	}

	data, err := r.fetcher.Fetch(ctx, e.URL)
	if err != nil {
		return failed(e, err.Error())
	}

	if err := r.store.WriteFile(e.Filename, data); err != nil {
		return failed(e, err.Error())
	}

	if e.HasDigest() {
		actual, err := r.store.Digest(e.Filename)
		if err != nil {
			return failed(e, err.Error())
		}

		// No rollback: the freshly written file stays on disk.
		if !strings.EqualFold(actual, e.SHA256) {
			return failed(e, mismatch(e, actual))
		}
	}

	return entity.Outcome{Entry: e, Kind: entity.OutcomeDownloaded}
}

func failed(e entity.Entry, reason string) entity.Outcome {
	return entity.Outcome{Entry: e, Kind: entity.OutcomeFailed, Err: reason}
}

func mismatch(e entity.Entry, actual string) string {
	return fmt.Sprintf("sha256 mismatch for %s (expected %s, got %s)", e.Filename, e.SHA256, actual)
}
