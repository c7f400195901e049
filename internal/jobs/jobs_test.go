package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"botpanel/internal/store"
)

type fakeStore struct {
	store.Store

	expireCalls  int
	expireCutoff time.Time
	expired      int64

	purgedNotifBefore time.Time
	purgedRevocations int
}

func (f *fakeStore) ExpireTransactions(ctx context.Context, now time.Time) (int64, error) {
	f.expireCalls++
	f.expireCutoff = now
	return f.expired, nil
}

func (f *fakeStore) PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error) {
	f.purgedNotifBefore = before
	return 0, nil
}

func (f *fakeStore) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	f.purgedRevocations++
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpireTransactionsUsesCurrentTime(t *testing.T) {
	fs := &fakeStore{expired: 3}
	r := New(fs, nil, testLogger(), nil)

	before := time.Now().UTC()
	r.expireTransactions()
	after := time.Now().UTC()

	if fs.expireCalls != 1 {
		t.Fatalf("expected one expiry sweep, got %d", fs.expireCalls)
	}
	if fs.expireCutoff.Before(before) || fs.expireCutoff.After(after) {
		t.Fatalf("expected cutoff between %v and %v, got %v", before, after, fs.expireCutoff)
	}
}

func TestPurgeStaleRowsUsesRetentionWindow(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs, nil, testLogger(), nil)

	r.purgeStaleRows()

	wantBefore := time.Now().UTC().Add(-notificationRetention)
	diff := fs.purgedNotifBefore.Sub(wantBefore)
	if diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected cutoff near %v, got %v", wantBefore, fs.purgedNotifBefore)
	}
	if fs.purgedRevocations != 1 {
		t.Fatalf("expected one revocation purge, got %d", fs.purgedRevocations)
	}
}
