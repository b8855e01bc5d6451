// Package identity abstracts the authenticated principal behind the
// station. The core never polls; it subscribes once at startup and reacts
// to "current user changed" notifications.
package identity

import "sync"

// User is the authenticated principal submitting attendance.
type User struct {
	ID    string
	Email string
}

// Provider supplies the current user and change notifications. Current
// returns nil while nobody is signed in.
type Provider interface {
	Current() *User
	Changes() <-chan *User
}

// StaticProvider binds a fixed user to the station, the common setup for a
// personal badge kiosk. SetCurrent exists so tests and future real
// providers can drive sign-in/sign-out transitions.
type StaticProvider struct {
	mu      sync.Mutex
	current *User
	changes chan *User
}

// NewStaticProvider creates a provider with the given signed-in user.
// An empty id means signed out.
func NewStaticProvider(id, email string) *StaticProvider {
	p := &StaticProvider{changes: make(chan *User, 1)}
	if id != "" {
		p.current = &User{ID: id, Email: email}
	}
	return p
}

func (p *StaticProvider) Current() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *StaticProvider) Changes() <-chan *User {
	return p.changes
}

// SetCurrent switches the signed-in user and notifies the subscriber.
func (p *StaticProvider) SetCurrent(u *User) {
	p.mu.Lock()
	p.current = u
	p.mu.Unlock()

	select {
	case p.changes <- u:
	default:
		// Drop the stale notification; the subscriber re-reads Current
		// when it handles the next one.
		select {
		case <-p.changes:
		default:
		}
		p.changes <- u
	}
}
