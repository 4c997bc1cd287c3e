/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"sync"
	"time"
)

// Peer is one live connection. Send must not block; it reports false when
// the connection cannot accept more messages.
type Peer interface {
	Send(msg any) bool
	Close() error
}

type registryEntry struct {
	player   Player
	peer     Peer
	room     string
	lastSeen time.Time
}

// Registry maps player ids to their current connection and bound room.
// A player has at most one live peer; attaching a new one supersedes the old.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		now:     time.Now,
	}
}

// Attach makes peer the current connection for p. It returns the previous
// peer, if any, so the caller can close it outside the lock.
func (r *Registry) Attach(p Player, peer Peer) Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[p.ID]
	if !ok {
		r.entries[p.ID] = &registryEntry{player: p, peer: peer, lastSeen: r.now()}
		return nil
	}

	prev := e.peer
	e.player = p
	e.peer = peer
	e.lastSeen = r.now()

	if prev == peer {
		return nil
	}

	return prev
}

// Detach drops the player's connection, but only while peer is still the
// current one. The entry survives while the player is bound to a room.
func (r *Registry) Detach(id string, peer Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.peer != peer {
		return false
	}

	e.peer = nil
	if e.room == "" {
		delete(r.entries, id)
	}

	return true
}

// IsCurrent reports whether peer is the player's live connection.
func (r *Registry) IsCurrent(id string, peer Peer) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return ok && e.peer != nil && e.peer == peer
}

// Notify implements Notifier. A peer whose buffer is full is closed; its
// read loop then reports the disconnect.
func (r *Registry) Notify(id string, msg any) {
	r.mu.RLock()
	e, ok := r.entries[id]
	var peer Peer
	if ok {
		peer = e.peer
	}
	r.mu.RUnlock()

	if peer == nil {
		return
	}

	if !peer.Send(msg) {
		_ = peer.Close()
	}
}

// Bind records that the player is in room.
func (r *Registry) Bind(id, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &registryEntry{player: Player{ID: id}, lastSeen: r.now()}
		r.entries[id] = e
	}

	e.room = room
}

// Unbind clears the player's room, but only if it is still room.
func (r *Registry) Unbind(id, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.room != room {
		return
	}

	e.room = ""
	if e.peer == nil {
		delete(r.entries, id)
	}
}

// Room returns the room the player is bound to.
func (r *Registry) Room(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || e.room == "" {
		return "", false
	}

	return e.room, true
}

// Player returns the identity last attached for id.
func (r *Registry) Player(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Player{}, false
	}

	return e.player, true
}

// Touch marks the player as active now.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.lastSeen = r.now()
	}
}

// Idle lists connected players not seen since cutoff, with their peers.
func (r *Registry) Idle(cutoff time.Time) map[string]Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Peer)
	for id, e := range r.entries {
		if e.peer != nil && e.lastSeen.Before(cutoff) {
			out[id] = e.peer
		}
	}

	return out
}

// Len returns the number of connected players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.peer != nil {
			n++
		}
	}

	return n
}

// CloseAll closes every connected peer and returns how many there were.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.entries))
	for _, e := range r.entries {
		if e.peer != nil {
			peers = append(peers, e.peer)
		}
	}
	r.mu.RUnlock()

	for _, p := range peers {
		_ = p.Close()
	}

	return len(peers)
}
