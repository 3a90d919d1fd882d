package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/voicebridge/internal/lang"
)

// Registry owns every live session. A single mutex serializes all membership
// changes, so at most one second device is ever admitted per key.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byConn   map[string]string
	ttl      time.Duration
	now      func() time.Time
	notifier Notifier
	onEvent  func(event string, active int)
}

func NewRegistry(ttl time.Duration, notifier Notifier) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notice) {})
	}
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		notifier: notifier,
	}
}

// SetClock replaces the time source. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetEventHook registers a callback invoked for every lifecycle event with the
// number of sessions remaining. It runs under the registry lock.
func (r *Registry) SetEventHook(hook func(event string, active int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = hook
}

// TTL returns the retention window.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Join admits connID into the session named key.
//
// A connection already paired elsewhere is moved: it leaves its old session
// first. Joining the same key twice is idempotent.
func (r *Registry) Join(key, connID, language string) (Status, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	language = normalizeLanguage(language)

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byConn[connID]; ok && current != key {
		r.removeLocked(connID)
	}

	s, ok := r.sessions[key]
	if !ok {
		s = &Session{
			Key:       key,
			Devices:   []Device{{ConnID: connID, Language: language}},
			CreatedAt: r.now(),
		}
		r.sessions[key] = s
		r.byConn[connID] = key
		r.emit("created")
		r.notify(connID, key, StatusWaiting, MsgWaiting)
		return StatusWaiting, nil
	}

	if s.indexOf(connID) >= 0 {
		r.emit("already_joined")
		r.notify(connID, key, s.Status(), MsgAlreadyJoined)
		return s.Status(), nil
	}

	if len(s.Devices) >= MaxDevices {
		r.emit("full")
		return "", ErrSessionFull
	}

	s.Devices = append(s.Devices, Device{ConnID: connID, Language: language})
	r.byConn[connID] = key
	r.emit("connected")
	for _, d := range s.Devices {
		r.notify(d.ConnID, key, StatusConnected, MsgConnected)
	}
	return StatusConnected, nil
}

// Leave removes connID from whatever session holds it. Unknown connections
// are ignored.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(connID)
}

// ResolvePeer finds the session holding connID and its counterpart.
func (r *Registry) ResolvePeer(connID string) (Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byConn[connID]
	if !ok {
		return Peer{}, ErrNotInSession
	}
	s := r.sessions[key]
	idx := s.indexOf(connID)
	if idx < 0 {
		return Peer{}, ErrNotInSession
	}
	peer := Peer{SessionKey: key, Sender: s.Devices[idx]}
	for i, d := range s.Devices {
		if i != idx {
			peer.Receiver = d
			return peer, nil
		}
	}
	return peer, ErrNoReceiver
}

// Get returns a copy of the session named key.
func (r *Registry) Get(key string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return Session{}, false
	}
	return clone(s), true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot lists every session, oldest first.
func (r *Registry) Snapshot() []View {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	views := make([]View, 0, len(r.sessions))
	for _, s := range r.sessions {
		langs := make([]string, 0, len(s.Devices))
		for _, d := range s.Devices {
			langs = append(langs, d.Language)
		}
		views = append(views, View{
			Key:         s.Key,
			Status:      s.Status(),
			DeviceCount: len(s.Devices),
			Languages:   langs,
			CreatedAt:   s.CreatedAt,
			AgeMS:       now.Sub(s.CreatedAt).Milliseconds(),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].Key < views[j].Key
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

func (r *Registry) removeLocked(connID string) {
	key, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)

	s := r.sessions[key]
	idx := s.indexOf(connID)
	if idx < 0 {
		return
	}
	s.Devices = append(s.Devices[:idx], s.Devices[idx+1:]...)

	switch len(s.Devices) {
	case 0:
		delete(r.sessions, key)
		r.emit("deleted")
	default:
		r.emit("left")
		for _, d := range s.Devices {
			r.notify(d.ConnID, key, StatusWaiting, MsgPeerLeft)
		}
	}
}

func (r *Registry) notify(connID, key string, status Status, msg string) {
	r.notifier.Notify(Notice{ConnID: connID, SessionKey: key, Status: status, Message: msg})
}

func (r *Registry) emit(event string) {
	if r.onEvent != nil {
		r.onEvent(event, len(r.sessions))
	}
}

func (s *Session) indexOf(connID string) int {
	for i, d := range s.Devices {
		if d.ConnID == connID {
			return i
		}
	}
	return -1
}

func clone(s *Session) Session {
	c := *s
	c.Devices = append([]Device(nil), s.Devices...)
	return c
}

func normalizeLanguage(tok string) string {
	n, err := lang.Normalize(tok)
	if err != nil {
		return strings.TrimSpace(tok)
	}
	return n
}
