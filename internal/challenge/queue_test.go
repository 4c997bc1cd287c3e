/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/wordrace/internal/scoring"
)

type pairLog struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (l *pairLog) match(a, b MatchRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pairs = append(l.pairs, [2]string{a.Player.ID, b.Player.ID})
}

func (l *pairLog) all() [][2]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([][2]string(nil), l.pairs...)
}

func startQueue(t *testing.T, opts QueueOptions) *Queue {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	q := NewQueue(opts)
	q.Start(ctx)

	t.Cleanup(func() {
		cancel()
		q.Wait()
	})

	return q
}

func request(id string, gt GameType) MatchRequest {
	return MatchRequest{
		Ticket:     "ticket-" + id,
		Player:     Player{ID: id, Name: id},
		GameType:   gt,
		Level:      scoring.A1,
		EnqueuedAt: time.Now(),
	}
}

func TestQueuePairsOldestTwoInArrivalOrder(t *testing.T) {
	log := &pairLog{}
	n := newFakeNotifier("a", "b", "c")
	q := startQueue(t, QueueOptions{Notifier: n, OnMatch: log.match})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, request(id, WordRace)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	pairs := log.all()
	if len(pairs) != 1 || pairs[0] != [2]string{"a", "b"} {
		t.Fatalf("expected a single pair [a b], got %v", pairs)
	}

	if got := q.Waiting(); got != 1 {
		t.Fatalf("expected 1 waiting, got %d", got)
	}
	if !q.Queued("c") || q.Queued("a") || q.Queued("b") {
		t.Fatalf("only c should still be queued")
	}

	first := n.peer("a").expect(t, EventWaiting).(WaitingMessage)
	if first.RoomID != "ticket-a" || first.WaitingCount != 0 || first.GameType != WordRace {
		t.Fatalf("unexpected waiting message: %+v", first)
	}
}

func TestQueuePartitionsDoNotCrossMatch(t *testing.T) {
	log := &pairLog{}
	q := startQueue(t, QueueOptions{Notifier: newFakeNotifier(), OnMatch: log.match})

	ctx := context.Background()
	if err := q.Enqueue(ctx, request("a", WordRace)); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, request("b", Quiz)); err != nil {
		t.Fatal(err)
	}

	if pairs := log.all(); len(pairs) != 0 {
		t.Fatalf("players of different game types were paired: %v", pairs)
	}
	if got := q.Waiting(); got != 2 {
		t.Fatalf("expected 2 waiting, got %d", got)
	}
}

func TestQueueRejectsSecondRequest(t *testing.T) {
	q := startQueue(t, QueueOptions{Notifier: newFakeNotifier()})

	ctx := context.Background()
	if err := q.Enqueue(ctx, request("a", WordRace)); err != nil {
		t.Fatal(err)
	}

	for _, gt := range GameTypes {
		if err := q.Enqueue(ctx, request("a", gt)); !errors.Is(err, ErrAlreadyQueued) {
			t.Fatalf("%s: expected ErrAlreadyQueued, got %v", gt, err)
		}
	}

	if got := q.Waiting(); got != 1 {
		t.Fatalf("rejected request changed the queue: %d waiting", got)
	}
}

func TestQueueRejectsPlayerInSession(t *testing.T) {
	q := startQueue(t, QueueOptions{
		Notifier:  newFakeNotifier(),
		InSession: func(id string) bool { return id == "busy" },
	})

	if err := q.Enqueue(context.Background(), request("busy", Quiz)); !errors.Is(err, ErrAlreadyInSession) {
		t.Fatalf("expected ErrAlreadyInSession, got %v", err)
	}
}

func TestQueueDequeueIsIdempotent(t *testing.T) {
	q := startQueue(t, QueueOptions{Notifier: newFakeNotifier()})
	ctx := context.Background()

	if removed, err := q.Dequeue(ctx, "ghost"); removed || err != nil {
		t.Fatalf("dequeue of absent player: removed=%v err=%v", removed, err)
	}

	if err := q.Enqueue(ctx, request("a", WordRace)); err != nil {
		t.Fatal(err)
	}

	if removed, err := q.Dequeue(ctx, "a"); !removed || err != nil {
		t.Fatalf("first dequeue: removed=%v err=%v", removed, err)
	}
	if removed, err := q.Dequeue(ctx, "a"); removed || err != nil {
		t.Fatalf("second dequeue: removed=%v err=%v", removed, err)
	}

	if err := q.Enqueue(ctx, request("a", Quiz)); err != nil {
		t.Fatalf("re-join after dequeue: %v", err)
	}
}

func TestQueueWaitingCountsAndSilenceAfterDequeue(t *testing.T) {
	n := newFakeNotifier("a", "b", "c", "d")
	q := startQueue(t, QueueOptions{Notifier: n})
	ctx := context.Background()

	if err := q.Enqueue(ctx, request("a", WordRace)); err != nil {
		t.Fatal(err)
	}
	n.peer("a").expect(t, EventWaiting)

	if err := q.Enqueue(ctx, request("b", Quiz)); err != nil {
		t.Fatal(err)
	}

	joined := n.peer("b").expect(t, EventWaiting).(WaitingMessage)
	if joined.WaitingCount != 1 {
		t.Fatalf("b should see one other player waiting, got %d", joined.WaitingCount)
	}

	update := n.peer("a").expect(t, EventWaitingUpdate).(WaitingUpdateMessage)
	if update.WaitingCount != 1 {
		t.Fatalf("a should see one other player waiting, got %d", update.WaitingCount)
	}

	if _, err := q.Dequeue(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	update = n.peer("b").expect(t, EventWaitingUpdate).(WaitingUpdateMessage)
	if update.WaitingCount != 0 {
		t.Fatalf("b should be alone after a left, got %d", update.WaitingCount)
	}

	for _, id := range []string{"c", "d"} {
		if err := q.Enqueue(ctx, request(id, Quiz)); err != nil {
			t.Fatal(err)
		}
	}

	n.peer("a").quiet(t, 50*time.Millisecond)
}

func TestQueueEnqueueAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewQueue(QueueOptions{Notifier: newFakeNotifier()})
	q.Start(ctx)
	cancel()
	q.Wait()

	eventually(t, func() bool {
		err := q.Enqueue(context.Background(), request("a", WordRace))
		return errors.Is(err, ErrClosed)
	}, "expected ErrClosed after shutdown")
}
