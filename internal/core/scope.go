package core

import (
	"fmt"
	"strings"
)

// ScopeKind tells whether a query is keyed by truck or by user.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeTruck
	ScopeUser
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeTruck:
		return "truck"
	case ScopeUser:
		return "user"
	default:
		return "none"
	}
}

// Scope selects records by truck or by user, never both.
type Scope struct {
	TruckID string
	UserID  string
}

func ByTruck(truckID string) Scope {
	return Scope{TruckID: strings.TrimSpace(truckID)}
}

func ByUser(userID string) Scope {
	return Scope{UserID: strings.TrimSpace(userID)}
}

func (s Scope) Kind() ScopeKind {
	switch {
	case s.TruckID != "" && s.UserID == "":
		return ScopeTruck
	case s.UserID != "" && s.TruckID == "":
		return ScopeUser
	default:
		return ScopeNone
	}
}

func (s Scope) Validate() error {
	if s.TruckID != "" && s.UserID != "" {
		return fmt.Errorf("%w: truck and user are mutually exclusive", ErrInvalidScope)
	}
	if s.Kind() == ScopeNone {
		return fmt.Errorf("%w: a truck or user identifier is required", ErrInvalidScope)
	}
	return nil
}

// Matches reports whether a record's owner falls inside the scope.
func (s Scope) Matches(m Meta) bool {
	switch s.Kind() {
	case ScopeTruck:
		return m.TruckID == s.TruckID
	case ScopeUser:
		return m.UserID == s.UserID
	default:
		return false
	}
}

func (s Scope) ID() string {
	if s.TruckID != "" {
		return s.TruckID
	}
	return s.UserID
}

func (s Scope) String() string {
	return s.Kind().String() + ":" + s.ID()
}
