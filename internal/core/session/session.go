// Package session holds the authenticated identity of one in-flight request.
//
// A Session is created empty for every request and travels in the request's
// context.Context. It is never shared between requests, so concurrent
// handlers cannot observe each other's identity.
package session

import (
	"context"
	"sync"
)

// Session is the per-request security context.
type Session struct {
	mu       sync.RWMutex
	identity string
	token    string
}

// New returns an anonymous session.
func New() *Session {
	return &Session{}
}

// Authenticate records the identity (and the token that proved it).
func (s *Session) Authenticate(identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.token = token
}

// Identity returns the authenticated subject, or false when anonymous.
func (s *Session) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.identity != ""
}

// Token returns the bearer token that authenticated the session, if any.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear drops the identity. Clearing an anonymous session is a no-op.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = ""
	s.token = ""
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
