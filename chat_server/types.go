package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/gorilla/websocket"
)

const (
	maxNicknameRunes = 24
	maxChatTextRunes = 500
	sendQueueSize    = 32
)

// inboundFrame is the union of every client message. The type field
// discriminates; the remaining fields stay untyped so that non-string
// values survive parsing and get stringified the way the protocol expects.
type inboundFrame struct {
	Type     string      `json:"type"`
	Code     interface{} `json:"code"`
	Nickname interface{} `json:"nickname"`
	Text     interface{} `json:"text"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type okEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type systemEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type chatEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
}

func stringField(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Client is one connection's server-side state. UserID and
// IsAuthenticated are set exactly once, by Room.Admit, and only the
// connection's own read loop touches them afterwards.
type Client struct {
	Conn            *websocket.Conn
	ConnID          string
	IP              string
	Nickname        string
	UserID          string
	IsAuthenticated bool
	SendQueue       chan []byte
	Done            chan struct{}
}

// WritePump drains the send queue onto the connection. The queue is
// never closed; the pump stops when Done is closed or a write fails.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case msg := <-c.SendQueue:
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.Done:
			return
		}
	}
}

func (c *Client) enqueue(payload []byte) {
	select {
	case c.SendQueue <- payload:
	default:
		log.Printf("send queue full for conn %s, dropping message", c.ConnID)
	}
}

func (c *Client) sendJSON(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("sendJSON marshal failed:", err)
		return
	}
	c.enqueue(payload)
}
