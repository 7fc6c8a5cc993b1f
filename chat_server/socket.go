package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatServer wires the room to its audit sinks and carries the process
// configuration into the connection handlers.
type ChatServer struct {
	cfg      Config
	room     *Room
	chatLog  ChatLogger
	quotaLog *QuotaLog
}

func NewChatServer(cfg Config, room *Room, chatLog ChatLogger, quotaLog *QuotaLog) *ChatServer {
	return &ChatServer{
		cfg:      cfg,
		room:     room,
		chatLog:  chatLog,
		quotaLog: quotaLog,
	}
}

func (s *ChatServer) HandleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(64 * 1024)
	defer conn.Close()

	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = "unknown"
	}

	client := &Client{
		Conn:      conn,
		ConnID:    uuid.NewString(),
		IP:        clientIP,
		Nickname:  "anon",
		SendQueue: make(chan []byte, sendQueueSize),
		Done:      make(chan struct{}),
	}
	go client.WritePump()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(msgBytes, &frame); err != nil {
			// Unparseable frames are dropped; the connection stays open.
			continue
		}

		if !client.IsAuthenticated {
			if !s.handleAuth(client, frame) {
				break
			}
			continue
		}

		s.dispatch(client, frame)
	}

	s.cleanupClient(client)
}

func (s *ChatServer) dispatch(client *Client, frame inboundFrame) {
	switch frame.Type {
	case "chat":
		s.handleChat(client, frame)
	default:
		log.Println("Unknown message type:", frame.Type)
	}
}

func (s *ChatServer) cleanupClient(client *Client) {
	if s.room.Remove(client) {
		s.quotaLog.WriteCounts(s.room.IPCounts())
		log.Printf("[IP Limit] %s disconnected (%d/%d)", client.IP, s.room.IPCount(client.IP), s.cfg.MaxPerIP)
		s.room.Broadcast(systemEvent{Type: "system", Message: client.UserID + " left"})
	}
	close(client.Done)
}
