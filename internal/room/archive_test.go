package room

import (
	"context"
	"sync"

	"github.com/vhoang/loto-live/internal/store"
)

// captureArchive records saved results for assertions.
type captureArchive struct {
	mu   sync.Mutex
	recs []store.GameRecord
}

func (a *captureArchive) SaveResult(_ context.Context, rec store.GameRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func (a *captureArchive) last() *store.GameRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.recs) == 0 {
		return nil
	}
	rec := a.recs[len(a.recs)-1]
	return &rec
}
