/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import "sync"

// Directory maps room ids to their running sessions.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Session
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]*Session)}
}

// Add registers s under id.
func (d *Directory) Add(id string, s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.rooms[id]; exists {
		return ErrRoomExists
	}

	d.rooms[id] = s

	return nil
}

func (d *Directory) Get(id string) (*Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.rooms[id]

	return s, ok
}

// Has reports whether id is in use.
func (d *Directory) Has(id string) bool {
	_, ok := d.Get(id)
	return ok
}

// Remove deletes id, but only while it still maps to s.
func (d *Directory) Remove(id string, s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cur, ok := d.rooms[id]; ok && cur == s {
		delete(d.rooms, id)
	}
}

// All returns a snapshot of the running sessions.
func (d *Directory) All() []*Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Session, 0, len(d.rooms))
	for _, s := range d.rooms {
		out = append(out, s)
	}

	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms)
}
