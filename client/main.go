package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeIdentify   = 2
	MsgTypeJoinDuel   = 101
	MsgTypeUpdateCode = 102
	MsgTypeSubmitCode = 104
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	duelID := flag.String("duel", "probe-duel", "duel id to join")
	userID := flag.String("user", "probe-user", "user id")
	name := flag.String("name", "probe", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
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

	identify, _ := json.Marshal(map[string]string{"user_id": *userID, "name": *name})
	if err := send(c, MsgTypeIdentify, identify); err != nil {
		log.Println("Write error:", err)
		return
	}

	join, _ := json.Marshal(map[string]string{"duel_id": *duelID, "language": "go"})
	if err := send(c, MsgTypeJoinDuel, join); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Client started. Type code lines to stream them, or 'submit' to submit.")

	var code strings.Builder

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
			text = strings.TrimRight(text, "\n")

			if text == "submit" {
				submit, _ := json.Marshal(map[string]string{
					"duel_id":  *duelID,
					"role":     "competitor1",
					"code":     code.String(),
					"language": "go",
				})
				if err := send(c, MsgTypeSubmitCode, submit); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: submission")
				continue
			}

			code.WriteString(text)
			code.WriteString("\n")
			update, _ := json.Marshal(map[string]string{
				"duel_id": *duelID,
				"role":    "competitor1",
				"code":    code.String(),
			})
			if err := send(c, MsgTypeUpdateCode, update); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
