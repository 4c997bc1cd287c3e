/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/wordrace/internal/scoring"
)

const waitTimeout = 2 * time.Second

// fakePeer records everything sent to it.
type fakePeer struct {
	mu     sync.Mutex
	msgs   []any
	ch     chan any
	closed bool
	full   bool
}

func newFakePeer() *fakePeer {
	return &fakePeer{ch: make(chan any, 256)}
}

func (p *fakePeer) Send(msg any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.full {
		return false
	}

	p.msgs = append(p.msgs, msg)
	p.ch <- msg

	return true
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// next returns the next message, failing the test after waitTimeout.
func (p *fakePeer) next(t *testing.T) any {
	t.Helper()

	select {
	case msg := <-p.ch:
		return msg
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for a message")
		return nil
	}
}

// expect returns the next message and fails unless it is of type want.
func (p *fakePeer) expect(t *testing.T, want string) any {
	t.Helper()

	msg := p.next(t)
	if got := eventType(msg); got != want {
		t.Fatalf("expected %q, got %q (%+v)", want, got, msg)
	}

	return msg
}

// waitFor skips messages until one of type want arrives.
func (p *fakePeer) waitFor(t *testing.T, want string) any {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case msg := <-p.ch:
			if eventType(msg) == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
			return nil
		}
	}
}

// quiet fails if any message arrives within d.
func (p *fakePeer) quiet(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case msg := <-p.ch:
		t.Fatalf("expected no message, got %q (%+v)", eventType(msg), msg)
	case <-time.After(d):
	}
}

func (p *fakePeer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, eventType(m))
	}

	return out
}

func eventType(msg any) string {
	b, err := json.Marshal(msg)
	if err != nil {
		return ""
	}

	var probe struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &probe)

	return probe.Type
}

// fakeNotifier routes Notify calls to per-player peers.
type fakeNotifier struct {
	mu    sync.Mutex
	peers map[string]*fakePeer
}

func newFakeNotifier(ids ...string) *fakeNotifier {
	n := &fakeNotifier{peers: make(map[string]*fakePeer)}
	for _, id := range ids {
		n.peers[id] = newFakePeer()
	}

	return n
}

func (n *fakeNotifier) Notify(id string, msg any) {
	n.mu.Lock()
	p, ok := n.peers[id]
	n.mu.Unlock()

	if ok {
		p.Send(msg)
	}
}

func (n *fakeNotifier) peer(id string) *fakePeer {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.peers[id]
}

// staticSource hands out a fixed question list.
type staticSource struct {
	mu        sync.Mutex
	questions []Question
	err       error
	levels    []scoring.Level
}

func (s *staticSource) Questions(_ context.Context, _ GameType, level scoring.Level, n int) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.levels = append(s.levels, level)
	if s.err != nil {
		return nil, s.err
	}

	return append([]Question(nil), s.questions[:min(n, len(s.questions))]...), nil
}

func (s *staticSource) requested() []scoring.Level {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]scoring.Level(nil), s.levels...)
}

// memProfiles is a minimal ProfileStore.
type memProfiles struct {
	mu sync.Mutex
	xp map[string]int
}

func newMemProfiles() *memProfiles {
	return &memProfiles{xp: make(map[string]int)}
}

func (m *memProfiles) Ensure(_ context.Context, id, name string) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Player{ID: id, Name: name, XP: m.xp[id]}, nil
}

func (m *memProfiles) AddXP(_ context.Context, id string, amount int, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.xp[id] += amount

	return m.xp[id], nil
}

func (m *memProfiles) get(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.xp[id]
}

// outcomes is a ResultRecorder that keeps everything.
type outcomes struct {
	mu   sync.Mutex
	list []Outcome
}

func (o *outcomes) Record(_ context.Context, out Outcome) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.list = append(o.list, out)

	return nil
}

func (o *outcomes) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.list)
}

// germanWords is five A1 items with umlauts and eszett.
func germanWords() []Question {
	words := []struct{ prompt, answer string }{
		{"the apple", "der Apfel"},
		{"beautiful", "schön"},
		{"the street", "die Straße"},
		{"the girl", "das Mädchen"},
		{"over", "über"},
	}

	out := make([]Question, 0, len(words))
	for i, w := range words {
		out = append(out, Question{
			ID:     fmt.Sprintf("q%d", i+1),
			Prompt: w.prompt,
			Answer: w.answer,
		})
	}

	return out
}

// eventually polls cond until it holds or waitTimeout passes.
func eventually(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf(format, args...)
}
