/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"context"
	"sync"
)

// MatchFunc receives the two oldest requests of a partition, oldest first.
// It runs inside the partition actor and must not call back into the queue.
type MatchFunc func(first, second MatchRequest)

// QueueOptions wires a Queue to the rest of the hub.
type QueueOptions struct {
	Notifier  Notifier
	Messages  Messages
	InSession func(playerID string) bool
	OnMatch   MatchFunc
}

type queueOp func(p *partition)

// partition owns the FIFO of one game type. Only its actor goroutine touches
// reqs.
type partition struct {
	gameType GameType
	ops      chan queueOp
	reqs     []MatchRequest
}

// Queue pairs join requests per game type. Each partition is a single
// goroutine; pending is shared across partitions so a player holds at most
// one request overall.
type Queue struct {
	opts  QueueOptions
	parts map[GameType]*partition

	mu       sync.Mutex
	pending  map[string]GameType
	matching map[string]struct{}

	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewQueue(opts QueueOptions) *Queue {
	q := &Queue{
		opts:     opts,
		parts:    make(map[GameType]*partition, len(GameTypes)),
		pending:  make(map[string]GameType),
		matching: make(map[string]struct{}),
		stopped:  make(chan struct{}),
	}

	for _, gt := range GameTypes {
		q.parts[gt] = &partition{gameType: gt, ops: make(chan queueOp)}
	}

	return q
}

// Start launches one actor per partition. They stop when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for _, p := range q.parts {
		q.wg.Add(1)
		go func(p *partition) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case op := <-p.ops:
					op(p)
				}
			}
		}(p)
	}

	go func() {
		<-ctx.Done()
		q.once.Do(func() { close(q.stopped) })
	}()
}

// Wait blocks until every partition actor has returned.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) do(ctx context.Context, gt GameType, op queueOp) error {
	p, ok := q.parts[gt]
	if !ok {
		return ErrUnknownGameType
	}

	select {
	case p.ops <- op:
		return nil
	case <-q.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds req to its partition. If that makes a pair, OnMatch has run
// by the time Enqueue returns.
func (q *Queue) Enqueue(ctx context.Context, req MatchRequest) error {
	reply := make(chan error, 1)

	err := q.do(ctx, req.GameType, func(p *partition) {
		reply <- q.enqueue(p, req)
	})
	if err != nil {
		return err
	}

	return <-reply
}

func (q *Queue) enqueue(p *partition, req MatchRequest) error {
	id := req.Player.ID

	q.mu.Lock()
	if _, queued := q.pending[id]; queued {
		q.mu.Unlock()
		return ErrAlreadyQueued
	}
	if q.opts.InSession != nil && q.opts.InSession(id) {
		q.mu.Unlock()
		return ErrAlreadyInSession
	}
	q.pending[id] = p.gameType
	q.mu.Unlock()

	p.reqs = append(p.reqs, req)

	if len(p.reqs) < 2 {
		q.mu.Lock()
		others := q.waitingLocked() - 1
		q.notify(id, WaitingMessage{
			Type:         EventWaiting,
			RoomID:       req.Ticket,
			WaitingCount: others,
			GameType:     req.GameType,
			Message:      q.text("queue.waiting", map[string]any{"Others": others}),
		})
		q.publishLocked(id)
		q.mu.Unlock()

		return nil
	}

	first, second := p.reqs[0], p.reqs[1]
	p.reqs = append(p.reqs[:0], p.reqs[2:]...)

	// Both stay in pending until OnMatch has bound them to the room, but
	// they no longer count as waiting.
	q.mu.Lock()
	q.matching[first.Player.ID] = struct{}{}
	q.matching[second.Player.ID] = struct{}{}
	q.mu.Unlock()

	if q.opts.OnMatch != nil {
		q.opts.OnMatch(first, second)
	}

	q.mu.Lock()
	for _, id := range []string{first.Player.ID, second.Player.ID} {
		delete(q.pending, id)
		delete(q.matching, id)
	}
	q.publishLocked("")
	q.mu.Unlock()

	return nil
}

// Dequeue withdraws the player's pending request. It is a no-op when there
// is none. Once it returns, no queue message reaches the player.
func (q *Queue) Dequeue(ctx context.Context, playerID string) (bool, error) {
	q.mu.Lock()
	gt, ok := q.pending[playerID]
	q.mu.Unlock()

	if !ok {
		return false, nil
	}

	reply := make(chan bool, 1)

	err := q.do(ctx, gt, func(p *partition) {
		removed := false
		for i, r := range p.reqs {
			if r.Player.ID == playerID {
				p.reqs = append(p.reqs[:i], p.reqs[i+1:]...)
				removed = true
				break
			}
		}

		if removed {
			q.mu.Lock()
			delete(q.pending, playerID)
			q.publishLocked("")
			q.mu.Unlock()
		}

		reply <- removed
	})
	if err != nil {
		return false, err
	}

	return <-reply, nil
}

// Queued reports whether the player has a pending request.
func (q *Queue) Queued(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.pending[playerID]

	return ok
}

// Waiting returns the number of pending requests across all partitions.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.waitingLocked()
}

func (q *Queue) waitingLocked() int {
	return len(q.pending) - len(q.matching)
}

// publishLocked sends waitingUpdate to every waiting player except skip.
// Callers hold q.mu, so a player removed from pending gets nothing further.
func (q *Queue) publishLocked(skip string) {
	others := q.waitingLocked() - 1
	if others < 0 {
		return
	}

	msg := WaitingUpdateMessage{
		Type:         EventWaitingUpdate,
		WaitingCount: others,
		Message:      q.text("queue.update", map[string]any{"Others": others}),
	}

	for id := range q.pending {
		if _, busy := q.matching[id]; busy || id == skip {
			continue
		}
		q.notify(id, msg)
	}
}

func (q *Queue) notify(id string, msg any) {
	if q.opts.Notifier != nil {
		q.opts.Notifier.Notify(id, msg)
	}
}

func (q *Queue) text(key string, data any) string {
	if q.opts.Messages == nil {
		return key
	}

	return q.opts.Messages.Text(key, data)
}
