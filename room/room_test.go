package room

import (
	"strings"
	"testing"
	"time"
)

func TestManager_CreateAndGetRoom(t *testing.T) {
	manager := NewManager()

	room := manager.CreateRoom(time.Now())
	if room == nil {
		t.Fatal("CreateRoom should not return nil")
	}

	if len(room.Code) != 4 {
		t.Errorf("Expected a 4-character room code, got %q", room.Code)
	}
	if room.Code != strings.ToUpper(room.Code) {
		t.Errorf("Expected an uppercase room code, got %q", room.Code)
	}
	for _, c := range room.Code {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			t.Errorf("Expected a hex room code, got %q", room.Code)
		}
	}

	retrieved, exists := manager.GetRoom(room.Code)
	if !exists {
		t.Fatal("GetRoom should find the created room")
	}
	if retrieved != room {
		t.Error("GetRoom should return the same room instance")
	}
}

func TestManager_GetRoom_CaseInsensitive(t *testing.T) {
	manager := NewManager()
	room := manager.CreateRoom(time.Now())

	retrieved, exists := manager.GetRoom(strings.ToLower(room.Code))
	if !exists {
		t.Fatal("GetRoom should accept lowercase codes")
	}
	if retrieved != room {
		t.Error("GetRoom should return the same room instance")
	}
}

func TestManager_RemoveRoom(t *testing.T) {
	manager := NewManager()
	room := manager.CreateRoom(time.Now())

	manager.RemoveRoom(room.Code)

	if _, exists := manager.GetRoom(room.Code); exists {
		t.Error("GetRoom should not find a removed room")
	}
	if manager.Count() != 0 {
		t.Errorf("Expected room count to be 0, got %d", manager.Count())
	}
}

func TestRoom_AddPlayer_JoinOrder(t *testing.T) {
	manager := NewManager()
	room := manager.CreateRoom(time.Now())

	room.AddPlayer("s1", "Alice")
	room.AddPlayer("s2", "Bob")
	room.AddPlayer("s3", "Carol")

	roster := room.Roster()
	if len(roster) != 3 {
		t.Fatalf("Expected 3 seated players, got %d", len(roster))
	}

	nicknames := []string{roster[0].Nickname, roster[1].Nickname, roster[2].Nickname}
	expected := []string{"Alice", "Bob", "Carol"}
	for i := range expected {
		if nicknames[i] != expected[i] {
			t.Errorf("Expected join order %v, got %v", expected, nicknames)
			break
		}
	}
}

func TestRoom_IsFull(t *testing.T) {
	manager := NewManager()
	room := manager.CreateRoom(time.Now())

	for i, nick := range []string{"a", "b", "c", "d"} {
		if room.IsFull() {
			t.Fatalf("Room should not be full with %d players", i)
		}
		room.AddPlayer(nick, nick)
	}

	if !room.IsFull() {
		t.Error("Room should be full with 4 players")
	}
}

func TestRoom_HasNickname_CaseSensitive(t *testing.T) {
	manager := NewManager()
	room := manager.CreateRoom(time.Now())
	room.AddPlayer("s1", "Alice")

	if !room.HasNickname("Alice") {
		t.Error("HasNickname should find an exact match")
	}
	if room.HasNickname("alice") {
		t.Error("HasNickname must be case-sensitive")
	}
}

func TestRoom_RemovePlayer(t *testing.T) {
	manager := NewManager()
	room := manager.CreateRoom(time.Now())
	room.AddPlayer("s1", "Alice")
	room.AddPlayer("s2", "Bob")

	removed := room.RemovePlayer("s1")
	if removed == nil || removed.Nickname != "Alice" {
		t.Fatalf("Expected to remove Alice, got %v", removed)
	}

	if room.PlayerCount() != 1 {
		t.Errorf("Expected 1 player after removal, got %d", room.PlayerCount())
	}

	if again := room.RemovePlayer("s1"); again != nil {
		t.Error("Removing an unseated session should return nil")
	}
}

func TestManager_SweepInactive(t *testing.T) {
	manager := NewManager()
	now := time.Now()

	stale := manager.CreateRoom(now.Add(-time.Hour))
	stale.AddPlayer("s1", "Alice") // still occupied; the sweep evicts anyway
	fresh := manager.CreateRoom(now)

	evicted := manager.SweepInactive(30*time.Minute, now)

	if len(evicted) != 1 || evicted[0] != stale {
		t.Fatalf("Expected only the stale room to be evicted, got %d rooms", len(evicted))
	}
	if _, exists := manager.GetRoom(stale.Code); exists {
		t.Error("Evicted room should be gone from the registry")
	}
	if _, exists := manager.GetRoom(fresh.Code); !exists {
		t.Error("Fresh room should survive the sweep")
	}
}

func TestManager_Codes(t *testing.T) {
	manager := NewManager()
	r1 := manager.CreateRoom(time.Now())
	r2 := manager.CreateRoom(time.Now())

	codes := manager.Codes()
	if len(codes) != 2 {
		t.Fatalf("Expected 2 codes, got %d", len(codes))
	}

	found := map[string]bool{}
	for _, c := range codes {
		found[c] = true
	}
	if !found[r1.Code] || !found[r2.Code] {
		t.Errorf("Codes %v should contain %s and %s", codes, r1.Code, r2.Code)
	}
}
