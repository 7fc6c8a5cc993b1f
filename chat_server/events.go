package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// rejectConn writes the error event straight to the connection and
// closes it. Rejected connections were never registered, so the direct
// write cannot race the write pump.
func (s *ChatServer) rejectConn(client *Client, message string) {
	_ = client.Conn.WriteJSON(errorEvent{Type: "error", Message: message})
	client.Conn.Close()
}

// handleAuth gates the first message on a still-unauthenticated
// connection. Returns false when the connection was rejected and closed;
// no retry is offered, the client has to reconnect.
func (s *ChatServer) handleAuth(client *Client, frame inboundFrame) bool {
	code := stringField(frame.Code)
	nickname := stringField(frame.Nickname)
	if nickname == "" {
		nickname = "anon"
	}
	nickname = truncateRunes(nickname, maxNicknameRunes)

	err := s.room.Admit(client, frame.Type, code)
	switch {
	case err == nil:
	case errors.Is(err, errIPLimit):
		log.Printf("[IP Limit] Rejected connection from %s (limit: %d)", client.IP, s.cfg.MaxPerIP)
		s.rejectConn(client, fmt.Sprintf("Connection limit reached. Max %d connection(s) per device.", s.cfg.MaxPerIP))
		return false
	case errors.Is(err, errRoomFull):
		s.rejectConn(client, "Room full")
		return false
	case errors.Is(err, errNeedAuth):
		s.rejectConn(client, "Need auth first")
		return false
	default:
		s.rejectConn(client, "Room code invalid")
		return false
	}

	client.Nickname = nickname
	s.quotaLog.WriteCounts(s.room.IPCounts())
	log.Printf("[IP Limit] %s authenticated (%d/%d)", client.IP, s.room.IPCount(client.IP), s.cfg.MaxPerIP)

	// Ack goes to the new client only, then the join notice to everyone.
	// The client is already registered, so it sees its own join event.
	client.sendJSON(okEvent{Type: "ok", Message: "authed", UserID: client.UserID})
	s.room.Broadcast(systemEvent{Type: "system", Message: client.UserID + " joined"})
	return true
}

// handleChat relays one chat message from an authenticated client:
// audit row first, then the broadcast.
func (s *ChatServer) handleChat(client *Client, frame inboundFrame) {
	text := truncateRunes(stringField(frame.Text), maxChatTextRunes)
	if strings.TrimSpace(text) == "" {
		return
	}

	now := time.Now()
	s.chatLog.LogChat(formatTimeHHMMSS(now), client.Nickname, client.UserID, text)

	s.room.Broadcast(chatEvent{
		Type:     "chat",
		UserID:   client.UserID,
		Nickname: client.Nickname,
		Text:     text,
		TS:       now.UnixMilli(),
	})
}
