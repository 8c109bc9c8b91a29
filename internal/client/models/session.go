package models

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

type SessionMode string

const (
	SessionOnline  SessionMode = "online"
	SessionOffline SessionMode = "offline"
)

// Session is created by a successful PIN login and passed explicitly to
// whatever needs the acting identity.
type Session struct {
	User      User
	Mode      SessionMode
	StartedAt time.Time
}

func NewSession(u User, mode SessionMode, now time.Time) *Session {
	return &Session{User: u, Mode: mode, StartedAt: now}
}

// CapturedByID returns the user id to stamp on new records, or
// common.UnknownUserID for a nil session.
func (s *Session) CapturedByID() string {
	if s == nil || s.User.ID == "" {
		return common.UnknownUserID
	}
	return s.User.ID
}
