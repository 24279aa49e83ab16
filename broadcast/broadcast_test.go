package broadcast

import (
	"net"
	"testing"
	"time"

	"github.com/mbreuer/reaktor/network"
	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/session"
)

type recordingConn struct {
	sent []*network.Packet
}

func (c *recordingConn) Send(msgID uint16, data []byte) error {
	c.sent = append(c.sent, &network.Packet{MsgID: msgID, Data: data})
	return nil
}

func (c *recordingConn) Close() error               { return nil }
func (c *recordingConn) RemoteAddr() net.Addr       { return &net.TCPAddr{} }
func (c *recordingConn) SetHeartbeat(time.Duration) {}

func (c *recordingConn) ReadPacket() (*network.Packet, error) {
	return nil, nil
}

func setup() (*RoomBroadcaster, *room.Room, map[string]*recordingConn) {
	registry := room.NewManager()
	sessions := session.NewManager()
	r := registry.CreateRoom(time.Now())

	conns := make(map[string]*recordingConn)
	for _, id := range []string{"s1", "s2", "s3"} {
		conn := &recordingConn{}
		conns[id] = conn
		sessions.Add(session.NewSession(id, conn))
		r.AddPlayer(id, "player-"+id)
	}

	return NewRoomBroadcaster(registry, sessions), r, conns
}

func TestSendToSession(t *testing.T) {
	b, _, conns := setup()

	if err := b.SendToSession("s2", 301, []byte("{}")); err != nil {
		t.Fatalf("SendToSession failed: %v", err)
	}
	if len(conns["s2"].sent) != 1 {
		t.Fatalf("Expected 1 packet for s2, got %d", len(conns["s2"].sent))
	}
	if len(conns["s1"].sent) != 0 || len(conns["s3"].sent) != 0 {
		t.Error("Unicast should not reach other sessions")
	}

	// An unknown session is dropped silently.
	if err := b.SendToSession("s404", 301, []byte("{}")); err != nil {
		t.Errorf("Unknown session should not error, got %v", err)
	}
}

func TestBroadcastToRoom(t *testing.T) {
	b, r, conns := setup()

	if err := b.BroadcastToRoom(r.Code, 305, []byte("{}"), ""); err != nil {
		t.Fatalf("BroadcastToRoom failed: %v", err)
	}
	for id, conn := range conns {
		if len(conn.sent) != 1 {
			t.Errorf("Expected 1 packet for %s, got %d", id, len(conn.sent))
		}
	}
}

func TestBroadcastToRoomExcept(t *testing.T) {
	b, r, conns := setup()

	if err := b.BroadcastToRoom(r.Code, 301, []byte("{}"), "s1"); err != nil {
		t.Fatalf("BroadcastToRoom failed: %v", err)
	}
	if len(conns["s1"].sent) != 0 {
		t.Error("Excluded session should receive nothing")
	}
	if len(conns["s2"].sent) != 1 || len(conns["s3"].sent) != 1 {
		t.Error("Remaining sessions should each receive the broadcast")
	}
}

func TestBroadcastToUnknownRoom(t *testing.T) {
	b, _, _ := setup()

	if err := b.BroadcastToRoom("ZZZZ", 305, []byte("{}"), ""); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}
