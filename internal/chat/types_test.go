package chat

import (
	"testing"

	"powpow/internal/game"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"", Command{Type: CmdEmpty}},
		{"   ", Command{Type: CmdEmpty}},
		{"/start", Command{Type: CmdHelp}},
		{"/HELP", Command{Type: CmdHelp}},
		{"/room MyRoom", Command{Type: CmdJoin, Room: "MyRoom"}},
		{"join  the pit ", Command{Type: CmdJoin, Room: "the pit"}},
		{"/room", Command{Type: CmdJoin, Room: ""}},
		{"/quit", Command{Type: CmdQuit}},
		{"EXIT", Command{Type: CmdQuit}},
		{"look", Command{Type: CmdLook}},
		{"Move North", Command{Type: CmdMove, Direction: game.North}},
		{"move w", Command{Type: CmdMove, Direction: game.West}},
		{"move up", Command{Type: CmdUnknown}},
		{"turn east", Command{Type: CmdTurn, Direction: game.East}},
		{"turn AROUND", Command{Type: CmdTurnAround}},
		{"turn", Command{Type: CmdUnknown}},
		{"FIRE", Command{Type: CmdFire}},
		{"fire now", Command{Type: CmdUnknown}},
		{"reload", Command{Type: CmdReload}},
		{"ammo", Command{Type: CmdAmmo}},
		{"health", Command{Type: CmdHealth}},
		{"respawn", Command{Type: CmdRespawn}},
		{"score", Command{Type: CmdScore}},
		{"dance", Command{Type: CmdUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ParseCommand(tt.text); got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, expected %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCommandTypeString(t *testing.T) {
	if CmdTurnAround.String() != "turn_around" {
		t.Errorf("Expected 'turn_around', got '%s'", CmdTurnAround.String())
	}
	if CommandType(99).String() != "unknown" {
		t.Error("Out of range command types should be unknown")
	}
}
