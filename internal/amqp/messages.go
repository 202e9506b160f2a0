package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetfinance/internal/core"
)

// Action is what happened to a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// RecordEvent announces a change to a ledger record. It carries identity and
// ownership only; consumers read current state from the store.
type RecordEvent struct {
	Action    Action        `json:"action"`
	Category  core.Category `json:"category"`
	ID        uuid.UUID     `json:"id"`
	TruckID   string        `json:"truckId"`
	UserID    string        `json:"userId"`
	Date      core.Date     `json:"date"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewRecordEvent(action Action, category core.Category, m core.Meta) RecordEvent {
	return RecordEvent{
		Action:    action,
		Category:  category,
		ID:        m.ID,
		TruckID:   m.TruckID,
		UserID:    m.UserID,
		Date:      m.Date,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RecordEventFromJSON decodes and sanity checks an event
func RecordEventFromJSON(data []byte) (RecordEvent, error) {
	var ev RecordEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RecordEvent{}, err
	}
	switch ev.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return RecordEvent{}, fmt.Errorf("unknown action %q", ev.Action)
	}
	if ev.ID == uuid.Nil {
		return RecordEvent{}, fmt.Errorf("event without record id")
	}
	return ev, nil
}
