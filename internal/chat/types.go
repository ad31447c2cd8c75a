package chat

import (
	"strings"
	"time"

	"powpow/internal/game"

	"golang.org/x/text/cases"
)

// InboundMessage is one text message delivered by a transport
type InboundMessage struct {
	Identity    string    `json:"identity"` // Stable per chat user
	DisplayName string    `json:"name"`
	Text        string    `json:"text"`
	ReceivedAt  time.Time `json:"-"`
}

// CommandType for routing
type CommandType int

const (
	CmdEmpty CommandType = iota
	CmdHelp
	CmdJoin
	CmdQuit
	CmdLook
	CmdMove
	CmdTurn
	CmdTurnAround
	CmdFire
	CmdReload
	CmdAmmo
	CmdHealth
	CmdRespawn
	CmdScore
	CmdUnknown
)

var commandNames = [...]string{
	CmdEmpty:      "empty",
	CmdHelp:       "help",
	CmdJoin:       "join",
	CmdQuit:       "quit",
	CmdLook:       "look",
	CmdMove:       "move",
	CmdTurn:       "turn",
	CmdTurnAround: "turn_around",
	CmdFire:       "fire",
	CmdReload:     "reload",
	CmdAmmo:       "ammo",
	CmdHealth:     "health",
	CmdRespawn:    "respawn",
	CmdScore:      "score",
	CmdUnknown:    "unknown",
}

// String returns the command name used in logs and metric labels
func (c CommandType) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return "unknown"
	}
	return commandNames[c]
}

// Command is a parsed chat command
type Command struct {
	Type      CommandType
	Room      string         // CmdJoin, case preserved
	Direction game.Direction // CmdMove, CmdTurn
}

// SupportedCommands maps single-word commands to types
var SupportedCommands = map[string]CommandType{
	// Help variants
	"/start": CmdHelp,
	"/help":  CmdHelp,
	"help":   CmdHelp,

	// Quit variants
	"/quit": CmdQuit,
	"exit":  CmdQuit,
	"quit":  CmdQuit,

	"look":    CmdLook,
	"fire":    CmdFire,
	"reload":  CmdReload,
	"ammo":    CmdAmmo,
	"health":  CmdHealth,
	"respawn": CmdRespawn,
	"score":   CmdScore,
}

// ParseCommand parses chat text. Commands are case-insensitive; the room
// name argument keeps its case.
func ParseCommand(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Type: CmdEmpty}
	}

	// Casers are stateful, so one per call
	fold := cases.Fold()

	verb, rest, hasArg := strings.Cut(trimmed, " ")
	verb = fold.String(verb)
	rest = strings.TrimSpace(rest)

	switch verb {
	case "/room", "join":
		return Command{Type: CmdJoin, Room: rest}
	case "move":
		if dir, ok := game.ParseDirection(rest); ok {
			return Command{Type: CmdMove, Direction: dir}
		}
		return Command{Type: CmdUnknown}
	case "turn":
		if fold.String(rest) == "around" {
			return Command{Type: CmdTurnAround}
		}
		if dir, ok := game.ParseDirection(rest); ok {
			return Command{Type: CmdTurn, Direction: dir}
		}
		return Command{Type: CmdUnknown}
	}

	if hasArg && rest != "" {
		return Command{Type: CmdUnknown}
	}
	if t, ok := SupportedCommands[verb]; ok {
		return Command{Type: t}
	}
	return Command{Type: CmdUnknown}
}
