package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

type memDownloads struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]domain.Download
	lastCut time.Time
	err     error
}

func (m *memDownloads) Reserve(context.Context, ports.ReserveDownloadParams) (domain.Download, error) {
	return domain.Download{}, errors.New("not used")
}

func (m *memDownloads) GetByID(_ context.Context, id uuid.UUID) (domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return domain.Download{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memDownloads) MarkSuccessful(context.Context, uuid.UUID, time.Time, time.Duration, int) error {
	return errors.New("not used")
}

func (m *memDownloads) CheckQuota(context.Context, uuid.UUID, time.Time, int) (domain.QuotaStatus, error) {
	return domain.QuotaStatus{}, errors.New("not used")
}

func (m *memDownloads) DeleteStaleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.lastCut = cutoff
	var deleted int64
	for id, d := range m.rows {
		if !d.Successful && d.DownloadedAt.Before(cutoff) {
			delete(m.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func TestReaperDeletesOnlyStalePending(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	stale := uuid.New()
	fresh := uuid.New()
	successful := uuid.New()
	store := &memDownloads{rows: map[uuid.UUID]domain.Download{
		stale:      {DownloadID: stale, DownloadedAt: now.Add(-25 * time.Hour), Successful: false},
		fresh:      {DownloadID: fresh, DownloadedAt: now.Add(-time.Hour), Successful: false},
		successful: {DownloadID: successful, DownloadedAt: now.Add(-72 * time.Hour), Successful: true},
	}}

	reaper := NewReaper(slog.New(slog.NewTextHandler(io.Discard, nil)), store, time.Hour, 24*time.Hour)
	reaper.nowFn = func() time.Time { return now }

	reaper.reapOnce(context.Background())

	if got, want := store.lastCut, now.Add(-24*time.Hour); !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}
	if _, err := store.GetByID(context.Background(), stale); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale row should be deleted, got %v", err)
	}
	if _, err := store.GetByID(context.Background(), fresh); err != nil {
		t.Fatalf("fresh row should survive: %v", err)
	}
	if _, err := store.GetByID(context.Background(), successful); err != nil {
		t.Fatalf("successful row should survive: %v", err)
	}
}

func TestReaperSurvivesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &memDownloads{rows: map[uuid.UUID]domain.Download{}, err: errors.New("db down")}
	reaper := NewReaper(slog.New(slog.NewTextHandler(io.Discard, nil)), store, time.Hour, 24*time.Hour)

	// Must not panic or propagate; the loop keeps going.
	reaper.reapOnce(context.Background())
}
