package callclient

import (
	"errors"

	"telehealth-calls/internal/rbac"
)

// Session is the signed-in participant. It is built once at login and passed
// to every client component.
type Session struct {
	Token string
	Role  string
	ID    int64
}

func (s Session) Validate() error {
	if s.Token == "" {
		return errors.New("session token is required")
	}
	if s.ID <= 0 {
		return errors.New("session id is required")
	}
	if !rbac.IsParticipantRole(s.Role) {
		return errors.New("session role must be doctor or patient")
	}
	return nil
}

func (s Session) IsDoctor() bool { return s.Role == rbac.RoleDoctor }
