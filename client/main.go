package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	msgTypeCreateRoom  = 101
	msgTypeJoinRoom    = 102
	msgTypeLeaveRoom   = 103
	msgTypeStartGame   = 104
	msgTypeToggleLever = 201
	msgTypeFinalAction = 202
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Commands: create <nick> | join <code> <nick> | start | toggle <A-D> | final <action> | leave")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				if len(fields) < 2 {
					log.Println("Usage: create <nick>")
					continue
				}
				err = sendJSON(c, msgTypeCreateRoom, map[string]string{"nickname": fields[1]})
			case "join":
				if len(fields) < 3 {
					log.Println("Usage: join <code> <nick>")
					continue
				}
				err = sendJSON(c, msgTypeJoinRoom, map[string]string{"roomCode": fields[1], "nickname": fields[2]})
			case "start":
				err = send(c, msgTypeStartGame, []byte("{}"))
			case "toggle":
				if len(fields) < 2 {
					log.Println("Usage: toggle <A-D>")
					continue
				}
				err = sendJSON(c, msgTypeToggleLever, map[string]string{"lever": fields[1]})
			case "final":
				if len(fields) < 2 {
					log.Println("Usage: final <action>")
					continue
				}
				err = sendJSON(c, msgTypeFinalAction, map[string]string{"action": fields[1]})
			case "leave":
				err = send(c, msgTypeLeaveRoom, []byte("{}"))
			default:
				log.Printf("Unknown command %q", fields[0])
				continue
			}

			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}
