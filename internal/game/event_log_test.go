package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogFlushesOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	el.EmitSimple(EventTypeJoin, "x", "a", JoinPayload{Name: "A"})
	el.EmitSimple(EventTypeKill, "x", "a", KillPayload{Victim: "b", KillerKills: 1})
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("Invalid JSON line: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Errorf("Expected sequences 1, 2; got %d, %d", events[0].Sequence, events[1].Sequence)
	}
	if events[0].ID == "" || events[0].ID == events[1].ID {
		t.Error("Events should carry unique IDs")
	}
	if events[1].Room != "x" {
		t.Errorf("Expected room x, got %q", events[1].Room)
	}
}

func TestEventLogPerIdentityLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxEventsPerIdentity*2; i++ {
		if el.EmitSimple(EventTypeFire, "x", "spammer", nil) {
			accepted++
		}
	}

	if accepted > MaxEventsPerIdentity+5 {
		t.Errorf("Expected at most %d accepted, got %d", MaxEventsPerIdentity+5, accepted)
	}
	if el.GetDroppedCount() == 0 {
		t.Error("Expected dropped events")
	}
}

func TestEventLogStoppedOrNil(t *testing.T) {
	var nilLog *EventLog
	if nilLog.EmitSimple(EventTypeJoin, "x", "a", nil) {
		t.Error("Nil log should not accept events")
	}

	el := NewEventLog()
	if el.EmitSimple(EventTypeJoin, "x", "a", nil) {
		t.Error("Log that was never started should not accept events")
	}
}
