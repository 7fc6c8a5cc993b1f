package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
)

var (
	errIPLimit  = errors.New("connection limit reached for address")
	errRoomFull = errors.New("room full")
	errNeedAuth = errors.New("need auth first")
	errBadCode  = errors.New("room code invalid")
)

// Room owns all shared mutable state of the relay: the set of
// authenticated clients, the per-address session counts and the session
// counter. Everything is guarded by one mutex so that admission, the
// quota check and the quota increment happen as a single atomic unit.
type Room struct {
	roomCode   string
	maxClients int
	maxPerIP   int

	mu       sync.Mutex
	clients  map[*Client]struct{}
	ipCounts map[string]int
	userSeq  int
}

func NewRoom(roomCode string, maxClients, maxPerIP int) *Room {
	return &Room{
		roomCode:   roomCode,
		maxClients: maxClients,
		maxPerIP:   maxPerIP,
		clients:    make(map[*Client]struct{}),
		ipCounts:   make(map[string]int),
	}
}

// Admit runs the admission sequence for the first message on an
// unauthenticated connection: per-address limit, room capacity, message
// tag, room code, in that order. On success it assigns the next USER_###
// id, marks the client authenticated, registers it and increments the
// address count. Two connections racing from the same address cannot
// both pass a limit of one.
func (r *Room) Admit(client *Client, msgType, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ipCounts[client.IP] >= r.maxPerIP {
		return errIPLimit
	}
	if len(r.clients) >= r.maxClients {
		return errRoomFull
	}
	if msgType != "auth" {
		return errNeedAuth
	}
	if code != r.roomCode {
		return errBadCode
	}

	r.userSeq++
	client.UserID = fmt.Sprintf("USER_%03d", r.userSeq)
	client.IsAuthenticated = true
	r.clients[client] = struct{}{}
	r.ipCounts[client.IP]++
	return nil
}

// Remove takes the client out of the room if it is a member and
// decrements its address count, dropping the entry when it reaches zero.
// Removing a non-member is a no-op.
func (r *Room) Remove(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client]; !ok {
		return false
	}
	delete(r.clients, client)

	if count, ok := r.ipCounts[client.IP]; ok {
		if count <= 1 {
			delete(r.ipCounts, client.IP)
		} else {
			r.ipCounts[client.IP]--
		}
	}
	return true
}

// Broadcast serializes the event once and enqueues the same bytes to a
// snapshot of the current members. A client disconnecting mid-broadcast
// may or may not receive the message.
func (r *Room) Broadcast(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("Broadcast marshal failed:", err)
		return
	}

	r.mu.Lock()
	members := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		members = append(members, client)
	}
	r.mu.Unlock()

	for _, client := range members {
		client.enqueue(payload)
	}
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) IPCount(ip string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ipCounts[ip]
}

// IPCounts returns a copy of the live address table for the quota sink.
func (r *Room) IPCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int, len(r.ipCounts))
	for ip, count := range r.ipCounts {
		counts[ip] = count
	}
	return counts
}
