// Package http exposes the finance service over a JSON API.
//
// This file implements utilities for parsing and validating request data:
// owner scopes, date windows, record ids and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"fleetfinance/internal/core"
)

// maxBodyBytes bounds a record payload.
const maxBodyBytes = 1 << 20

var errBadID = errors.New("invalid record id")

// ParseWindow reads the optional startDate/endDate pair.
func ParseWindow(query url.Values) (core.Window, error) {
	return core.ResolveWindow(query.Get("startDate"), query.Get("endDate"))
}

// ParseScope reads the truckId or userId filter of a list request.
func ParseScope(query url.Values) (core.Scope, error) {
	scope := core.Scope{
		TruckID: sanitizeInput(query.Get("truckId")),
		UserID:  sanitizeInput(query.Get("userId")),
	}
	return scope, scope.Validate()
}

// ParseID parses a record id path segment.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errBadID, raw)
	}
	return id, nil
}

// DecodeRecord reads a JSON record body, rejecting unknown fields and
// trailing data.
func DecodeRecord[T any](r *http.Request) (T, error) {
	var rec T
	if r.Body == nil {
		return rec, fmt.Errorf("%w: empty body", core.ErrInvalidRecord)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, fmt.Errorf("%w: empty body", core.ErrInvalidRecord)
		}
		return rec, fmt.Errorf("%w: %v", core.ErrInvalidRecord, err)
	}
	if dec.More() {
		return rec, fmt.Errorf("%w: unexpected data after record", core.ErrInvalidRecord)
	}
	return rec, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isInputError(err error) bool {
	return core.IsInputError(err) || errors.Is(err, errBadID)
}
