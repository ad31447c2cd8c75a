package game

import "errors"

// ErrorKind classifies engine errors for the chat layer
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindPreconditionFailed
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidInput:
		return "invalid_input"
	case KindPreconditionFailed:
		return "precondition_failed"
	default:
		return "internal"
	}
}

// Invalid input
var (
	ErrInvalidRoomName  = errors.New("invalid room name")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidDirection = errors.New("invalid direction")
)

// Failed preconditions
var (
	ErrRoomFull      = errors.New("room is full")
	ErrNotInRoom     = errors.New("not in a room")
	ErrAlreadyAlive  = errors.New("already alive")
	ErrDead          = errors.New("player is dead")
	ErrOutOfAmmo     = errors.New("out of ammo")
	ErrNoSpawnPoint  = errors.New("no free spawn point")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrUnknownRoom   = errors.New("unknown room")
)

// KindOf maps an engine error to its kind
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidRoomName),
		errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrInvalidDirection):
		return KindInvalidInput
	case errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrAlreadyAlive),
		errors.Is(err, ErrDead),
		errors.Is(err, ErrOutOfAmmo),
		errors.Is(err, ErrNoSpawnPoint),
		errors.Is(err, ErrUnknownPlayer),
		errors.Is(err, ErrUnknownRoom):
		return KindPreconditionFailed
	default:
		return KindInternal
	}
}
