package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeJoin
	EventTypeLeave
	EventTypeFire
	EventTypeDamage
	EventTypeKill
	EventTypeRespawn
	EventTypePickup
	EventTypeSweep
)

// EventVersion for backwards compatibility of the log format
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	ID        string          `json:"id"`        // Unique event ID
	Version   uint8           `json:"version"`   // Schema version
	Type      EventType       `json:"type"`      // Event type
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	Room      string          `json:"room"`      // Room the event happened in
	Identity  string          `json:"identity"`  // Source identity (for rate limiting)
	Payload   json.RawMessage `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeJoin:
		return "join"
	case EventTypeLeave:
		return "leave"
	case EventTypeFire:
		return "fire"
	case EventTypeDamage:
		return "damage"
	case EventTypeKill:
		return "kill"
	case EventTypeRespawn:
		return "respawn"
	case EventTypePickup:
		return "pickup"
	case EventTypeSweep:
		return "sweep"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event type by name
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes an event type name; unknown names map to EventTypeUnknown
func (t *EventType) UnmarshalText(text []byte) error {
	*t = EventTypeUnknown
	for c := EventTypeJoin; c <= EventTypeSweep; c++ {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	return nil
}

// Typed payloads for different event types

// JoinPayload is emitted when a player enters a room
type JoinPayload struct {
	Name     string       `json:"name"`
	Spawn    RespawnPoint `json:"spawn"`
	Degraded bool         `json:"degraded"`
}

// LeavePayload is emitted when a player leaves a room
type LeavePayload struct {
	Reason     string `json:"reason"` // "quit", "switch" or "idle"
	RoomClosed bool   `json:"roomClosed"`
}

// FirePayload is emitted for every shot fired
type FirePayload struct {
	Facing   Direction `json:"facing"`
	Targets  int       `json:"targets"`
	AmmoLeft int       `json:"ammoLeft"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	Victim   string `json:"victim"`
	Damage   int    `json:"damage"`
	VictimHP int    `json:"victimHp"`
	Distance int    `json:"distance"`
}

// KillPayload contains kill event details
type KillPayload struct {
	Victim       string   `json:"victim"`
	KillerKills  int      `json:"killerKills"`
	VictimDeaths int      `json:"victimDeaths"`
	Drop         ItemKind `json:"drop"`
}

// RespawnPayload contains respawn event details
type RespawnPayload struct {
	Spawn    RespawnPoint `json:"spawn"`
	Degraded bool         `json:"degraded"`
}

// PickupPayload is emitted when a player walks over a ground item
type PickupPayload struct {
	Item ItemKind `json:"item"`
	X    int      `json:"x"`
	Y    int      `json:"y"`
}

// SweepPayload summarises an idle sweep
type SweepPayload struct {
	Removed []string `json:"removed"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, room, identity string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Room:      room,
		Identity:  identity,
		Payload:   EncodePayload(payload),
	}
}
