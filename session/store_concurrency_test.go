package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hammers one user's sessions with racing deletes, bad rotations and
// delete-alls. The user index must end consistent and never undercount.
func TestActiveSessionCountUnderConcurrentOps(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const (
		userID   = "user-1"
		sessions = 24
		workers  = 16
		rounds   = 100
	)

	seed := func() {
		for i := 0; i < sessions; i++ {
			now := time.Now()
			sess := &Session{
				SessionID: fmt.Sprintf("sess-%d", i),
				UserID:    userID,
				Email:     "alice@example.com",
				Role:      "trader",
				CreatedAt: now.Unix(),
				ExpiresAt: now.Add(time.Hour).Unix(),
			}
			sess.RefreshHash[0] = byte(i + 1)
			if err := store.Save(ctx, sess, time.Hour); err != nil {
				t.Fatalf("save session %d failed: %v", i, err)
			}
		}
	}
	seed()

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			<-start

			for r := 0; r < rounds; r++ {
				sid := fmt.Sprintf("sess-%d", (workerID+r)%sessions)

				switch (workerID + r) % 3 {
				case 0:
					if err := store.Delete(ctx, sid); err != nil {
						t.Errorf("delete failed: %v", err)
					}
				case 1:
					var wrong, next [32]byte
					wrong[0] = 0xFF
					next[0] = byte((workerID + r + 7) % 255)
					_, err := store.RotateRefreshHash(ctx, sid, wrong, next)
					if err != nil && !errors.Is(err, ErrRefreshHashMismatch) && !errors.Is(err, redis.Nil) {
						t.Errorf("rotate failed: %v", err)
					}
				default:
					if err := store.DeleteAllForUser(ctx, userID); err != nil {
						t.Errorf("delete-all failed: %v", err)
					}
				}
			}
		}(w)
	}

	close(start)
	wg.Wait()

	count, err := store.ActiveSessionCount(ctx, userID)
	if err != nil {
		t.Fatalf("ActiveSessionCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected every session revoked, got %d", count)
	}

	ids, err := store.ActiveSessionIDs(ctx, userID)
	if err != nil {
		t.Fatalf("ActiveSessionIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty user index, got %v", ids)
	}
}
