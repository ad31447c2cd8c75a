package chat

import (
	"errors"
	"fmt"
	"strings"

	"powpow/internal/config"
	"powpow/internal/game"
	"powpow/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Replies
const (
	MsgJoined      = "You are now in the game. Use the commands to play. :-)"
	MsgRoomFull    = "This room is full.\nType another room name"
	MsgNoSpawn     = "There's no free spot in this room right now.\nType another room name"
	MsgInvalidRoom = "Type the room name again, the one that you tried is invalid. :("
	MsgQuit        = "You're now out of the room.\nType the name of the room you want to enter"
	MsgNotInRoom   = "Right now you're not in any room.\nType '/room <room name>' (e.g.: /room mygrouproom) to start playing!"
	MsgRespawned   = "Ok, you're back in the game"
	MsgAlive       = "You are already alive"
	MsgDead        = "You are dead. Type 'respawn' to back to the game."
	MsgShotWall    = "You've shot the wall"
	MsgNeedReload  = "Reload your gun by typing 'reload'"
	MsgOutOfAmmo   = "You're out of ammo"
	MsgUnknown     = "Unknown action"
	MsgEmpty       = "You're in the game! Use the commands to play."
	MsgSlowDown    = "Don't spam me, bro!"
	MsgInternal    = "Something went wrong. Try again."
)

// HelpText lists every command
const HelpText = "* /room - Choose the room \n" +
	"* /quit - Quit the room \n" +
	"* look - Show the room map and the enemies on your front \n" +
	"* move north/south/west/east - Move to another place \n" +
	"* turn north/south/west/east/around - Turn to another direction so you can view and fire your enemies  \n" +
	"* fire - Fire (o rly?) \n" +
	"* ammo - Show how much ammo you have \n" +
	"* health - Show how health you have \n" +
	"* reload - Reload your gun \n" +
	"* score - Show score table \n" +
	"* respawn - Respawn if you are dead \n\n" +
	"Please choose a room by typing '/room <room name>' (e.g.: /room mygrouproom) to start playing!"

// Reply is the text sent back to the sender of a command
type Reply struct {
	Identity string      `json:"-"`
	Command  CommandType `json:"-"`
	Text     string      `json:"reply"`
	Err      error       `json:"-"` // engine error behind the text, nil on success
}

// Engine is the game surface the handler drives
type Engine interface {
	Touch(identity, name string) bool
	Lookup(identity string) (game.PlayerInfo, error)
	Join(identity, room string) (game.JoinResult, error)
	Quit(identity string) error
	Look(identity string) (string, error)
	Move(identity string, dir game.Direction) (game.MoveResult, string, error)
	Turn(identity string, dir game.Direction) (string, error)
	TurnAround(identity string) (string, error)
	Fire(identity string) (game.FireResult, error)
	Reload(identity string) (game.ReloadResult, error)
	Ammo(identity string) (int, int, error)
	Health(identity string) (int, error)
	Respawn(identity string) (game.RespawnPoint, error)
	Score(identity string) ([]game.ScoreEntry, error)
}

// Handler turns chat messages into engine operations and text replies
type Handler struct {
	engine      Engine
	rateLimiter *RateLimiter
	log         *logrus.Entry

	// OnCommand is called after every processed command
	OnCommand func(cmd CommandType, err error)
}

// NewHandler creates a new command handler
func NewHandler(engine Engine, cfg config.ChatConfig) *Handler {
	return &Handler{
		engine: engine,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			PerSecond: cfg.CommandsPerSecond,
			Burst:     cfg.Burst,
		}),
		log: logger.Component("chat"),
	}
}

// Close stops background work
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// Process handles a single message and returns the reply text
func (h *Handler) Process(msg InboundMessage) Reply {
	if !h.rateLimiter.Allow(msg.Identity) {
		h.log.WithField("identity", msg.Identity).Debug("Rate limited")
		return Reply{Identity: msg.Identity, Command: CmdUnknown, Text: MsgSlowDown}
	}

	h.engine.Touch(msg.Identity, msg.DisplayName)

	cmd := ParseCommand(msg.Text)
	text, err := h.dispatch(msg.Identity, cmd)

	if err != nil && game.KindOf(err) == game.KindInternal {
		h.log.WithError(err).WithFields(logrus.Fields{
			"identity": msg.Identity,
			"command":  cmd.Type.String(),
		}).Error("Command failed")
	}
	if h.OnCommand != nil {
		h.OnCommand(cmd.Type, err)
	}

	return Reply{Identity: msg.Identity, Command: cmd.Type, Text: text, Err: err}
}

func (h *Handler) dispatch(identity string, cmd Command) (string, error) {
	switch cmd.Type {
	case CmdHelp:
		return HelpText, nil

	case CmdJoin:
		_, err := h.engine.Join(identity, cmd.Room)
		switch {
		case err == nil:
			return MsgJoined, nil
		case errors.Is(err, game.ErrInvalidRoomName):
			return MsgInvalidRoom, err
		case errors.Is(err, game.ErrRoomFull):
			return MsgRoomFull, err
		case errors.Is(err, game.ErrNoSpawnPoint):
			return MsgNoSpawn, err
		}
		return errorText(err), err

	case CmdQuit:
		// Quitting while outside a room still confirms
		if err := h.engine.Quit(identity); err != nil && !errors.Is(err, game.ErrNotInRoom) {
			return errorText(err), err
		}
		return MsgQuit, nil

	case CmdLook:
		view, err := h.engine.Look(identity)
		if err != nil {
			return errorText(err), err
		}
		return view, nil

	case CmdMove:
		result, view, err := h.engine.Move(identity, cmd.Direction)
		if err != nil {
			return errorText(err), err
		}
		if result.Message != "" {
			return result.Message + "\n" + view, nil
		}
		return view, nil

	case CmdTurn:
		view, err := h.engine.Turn(identity, cmd.Direction)
		if err != nil {
			return errorText(err), err
		}
		return view, nil

	case CmdTurnAround:
		view, err := h.engine.TurnAround(identity)
		if err != nil {
			return errorText(err), err
		}
		return view, nil

	case CmdFire:
		result, err := h.engine.Fire(identity)
		if err != nil {
			return errorText(err), err
		}
		return FireText(result), nil

	case CmdReload:
		result, err := h.engine.Reload(identity)
		if errors.Is(err, game.ErrOutOfAmmo) {
			return MsgOutOfAmmo, err
		}
		if err != nil {
			return errorText(err), err
		}
		return fmt.Sprintf("You've reloaded. Ammo: %d/%d", result.Ammo, result.Reserve), nil

	case CmdAmmo:
		ammo, reserve, err := h.engine.Ammo(identity)
		if err != nil {
			return errorText(err), err
		}
		return fmt.Sprintf("Ammo: %d/%d", ammo, reserve), nil

	case CmdHealth:
		health, err := h.engine.Health(identity)
		if err != nil {
			return errorText(err), err
		}
		return fmt.Sprintf("Health: %d%%", health), nil

	case CmdRespawn:
		_, err := h.engine.Respawn(identity)
		if errors.Is(err, game.ErrAlreadyAlive) {
			return MsgAlive, err
		}
		if err != nil {
			return errorText(err), err
		}
		return MsgRespawned, nil

	case CmdScore:
		entries, err := h.engine.Score(identity)
		if err != nil {
			return errorText(err), err
		}
		return game.RenderScoreTable(entries), nil
	}

	// Empty and unknown text pass the same gates as room commands
	info, err := h.engine.Lookup(identity)
	if err != nil {
		return errorText(err), err
	}
	switch {
	case info.State == game.StateOut:
		return MsgNotInRoom, game.ErrNotInRoom
	case info.State == game.StateDead:
		return MsgDead, game.ErrDead
	case cmd.Type == CmdEmpty:
		return MsgEmpty, nil
	}
	return MsgUnknown, game.ErrUnknownCommand
}

// errorText maps precondition failures shared by room commands
func errorText(err error) string {
	switch {
	case errors.Is(err, game.ErrNotInRoom), errors.Is(err, game.ErrUnknownPlayer):
		return MsgNotInRoom
	case errors.Is(err, game.ErrDead):
		return MsgDead
	case errors.Is(err, game.ErrInvalidDirection):
		return MsgUnknown
	}
	return MsgInternal
}

// FireText formats the shooter's reply:
// "You've hit A, B and killed C"
func FireText(result game.FireResult) string {
	switch result.Ammo {
	case game.AmmoNeedsReload:
		return MsgNeedReload
	case game.AmmoEmpty:
		return MsgOutOfAmmo
	}

	if len(result.Hit) == 0 && len(result.Killed) == 0 {
		return MsgShotWall
	}

	var sb strings.Builder
	sb.WriteString("You've")
	if len(result.Hit) > 0 {
		sb.WriteString(" hit " + strings.Join(result.Hit, ", "))
		if len(result.Killed) > 0 {
			sb.WriteString(" and")
		}
	}
	if len(result.Killed) > 0 {
		sb.WriteString(" killed " + strings.Join(result.Killed, ", "))
	}
	return sb.String()
}

// NoticeText is the message sent to a victim
func NoticeText(n game.Notice) string {
	if n.Killed {
		return n.ShooterName + " killed you! Type 'respawn' to back to the game"
	}
	return "uh oh! " + n.ShooterName + " shot you!"
}
