// Package event defines the wire envelope for user-lifecycle domain events.
// The schema is shared between the publishing user service and the consuming
// journal service; both sides must treat it as append-only (new fields and
// new event types may appear, existing ones never change meaning).
package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Type classifies a user-lifecycle mutation. The set is extensible; consumers
// must not reject unknown types.
type Type string

const (
	TypeUserCreated  Type = "USER_CREATED"
	TypeUserUpdated  Type = "USER_UPDATED"
	TypeUserDeleted  Type = "USER_DELETED"
	TypeRoleAssigned Type = "ROLE_ASSIGNED"
	TypeRoleRemoved  Type = "ROLE_REMOVED"
)

// EnvelopeType tags the wire schema so a consumer can check what it is
// decoding before committing to the full deserialization.
const EnvelopeType = "chronicle.user-event.v1"

// TypeHeader is the record header carrying EnvelopeType.
const TypeHeader = "ce-type"

// UserEvent is the envelope for a single domain-state change. Immutable once
// constructed; Timestamp is event-origin time, set by the publisher's clock.
type UserEvent struct {
	EventType Type           `json:"eventType"`
	UserID    *int64         `json:"userId"`
	Username  *string        `json:"username"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// Key returns the partition key: the stringified user id, or nil when the
// event carries no user. Events sharing a key are consumed in publish order.
func (e *UserEvent) Key() []byte {
	if e.UserID == nil {
		return nil
	}
	return []byte(strconv.FormatInt(*e.UserID, 10))
}

// Encode serializes the envelope for the durable log.
func Encode(e *UserEvent) ([]byte, error) {
	if e.EventType == "" {
		return nil, fmt.Errorf("event type is required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal user event: %w", err)
	}
	return data, nil
}

// Decode deserializes a wire payload back into an envelope. A payload without
// an event type is rejected as malformed.
func Decode(data []byte) (*UserEvent, error) {
	var e UserEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal user event: %w", err)
	}
	if e.EventType == "" {
		return nil, fmt.Errorf("user event missing eventType")
	}
	return &e, nil
}
