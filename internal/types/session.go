package types

import "strings"

// DefaultSessionTitle names the canonical conversation on the server.
const DefaultSessionTitle = "desktop"

type Session struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Directory string       `json:"directory,omitempty"`
	Time      *SessionTime `json:"time,omitempty"`
}

type SessionTime struct {
	Created Timestamp `json:"created"`
	Updated Timestamp `json:"updated"`
}

// HasTitle reports whether the session carries the given title. Surrounding
// whitespace is ignored; case is not.
func (s *Session) HasTitle(title string) bool {
	if s == nil {
		return false
	}
	return strings.TrimSpace(s.Title) == strings.TrimSpace(title)
}
