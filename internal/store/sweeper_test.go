package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventSweeper_Sweep(t *testing.T) {
	db := openTestDB(t)
	repo := NewWebhookEventRepository(db)
	ctx := context.Background()

	old := &WebhookEvent{Source: "board", EventType: "item_updated", Processed: true, CreatedAt: time.Now().Add(-60 * 24 * time.Hour)}
	fresh := &WebhookEvent{Source: "board", EventType: "item_updated", Processed: true}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	s := NewEventSweeper(repo, 30*24*time.Hour, time.Hour, zap.NewNop())
	s.sweep(ctx)

	n, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEventSweeper_StartStopsOnCancel(t *testing.T) {
	db := openTestDB(t)
	repo := NewWebhookEventRepository(db)

	s := NewEventSweeper(repo, time.Hour, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
