package directory

import (
	"sync"
	"time"

	"github.com/baechuer/user-console/internal/session"
)

// Registry keeps one Directory per session id. Entries idle for longer than
// the session TTL are swept on access.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Directory

	api      UserAPI
	sessions SessionInvalidator
	opts     Options
	idle     time.Duration
	now      func() time.Time
}

func NewRegistry(api UserAPI, sessions SessionInvalidator, idle time.Duration, opts Options) *Registry {
	return &Registry{
		entries:  make(map[string]*Directory),
		api:      api,
		sessions: sessions,
		opts:     opts,
		idle:     idle,
		now:      time.Now,
	}
}

// For returns the Directory of sess, creating it on first use.
func (r *Registry) For(sess *session.Session) *Directory {
	r.mu.Lock()
	r.sweepLocked()
	d, ok := r.entries[sess.ID]
	if !ok {
		d = New(sess, r.api, r.sessions, r.opts)
		d.now = r.now
		d.touch()
		r.entries[sess.ID] = d
		r.mu.Unlock()
		return d
	}
	r.mu.Unlock()

	// outside r.mu: d may be busy with a remote call
	d.mu.Lock()
	d.sess = sess
	d.mu.Unlock()
	d.touch()
	return d
}

// Drop forgets the Directory of a session, on logout or expiry.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) sweepLocked() {
	if r.idle <= 0 {
		return
	}
	cutoff := r.now().Add(-r.idle)
	for id, d := range r.entries {
		if d.idleSince().Before(cutoff) {
			delete(r.entries, id)
		}
	}
}
