package client

import (
	"net/http"
	"sync"
)

// Session is the single place a client keeps its credentials. It is shared by
// the transport and by callers that need to know whether they are signed in.
type Session struct {
	mu           sync.RWMutex
	token        string
	refreshToken string
	userID       string
	onInvalidate []func()
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Set(token, refreshToken, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.refreshToken, s.userID = token, refreshToken, userID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// OnInvalidate registers fn to run whenever the session is cleared.
func (s *Session) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Invalidate clears the credentials and notifies listeners once per
// signed-in session.
func (s *Session) Invalidate() {
	s.mu.Lock()
	wasSet := s.token != ""
	s.token, s.refreshToken, s.userID = "", "", ""
	listeners := append([]func(){}, s.onInvalidate...)
	s.mu.Unlock()

	if !wasSet {
		return
	}
	for _, fn := range listeners {
		fn()
	}
}

// authTransport injects the bearer token and drops the session when the
// server answers 401 to an authenticated request.
type authTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.session.Token()
	if token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" && t.session.Token() == token {
		t.session.Invalidate()
	}
	return resp, nil
}
