package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func newTestClient(ip string) *Client {
	return &Client{
		IP:        ip,
		Nickname:  "anon",
		SendQueue: make(chan []byte, sendQueueSize),
		Done:      make(chan struct{}),
	}
}

func mustAdmit(t *testing.T, room *Room, client *Client, code string) {
	t.Helper()
	if err := room.Admit(client, "auth", code); err != nil {
		t.Fatalf("admit %s: %v", client.IP, err)
	}
}

func TestAdmitAssignsSequentialUserIDs(t *testing.T) {
	room := NewRoom("1234", 1, 10)

	first := newTestClient("10.0.0.1")
	mustAdmit(t, room, first, "1234")
	if first.UserID != "USER_001" {
		t.Fatalf("expected USER_001, got %s", first.UserID)
	}
	if !first.IsAuthenticated {
		t.Fatal("expected admitted client to be authenticated")
	}
	room.Remove(first)

	// The counter survives session destruction and grows a fourth digit
	// past 999 without truncation.
	var last string
	for i := 2; i <= 1000; i++ {
		client := newTestClient("10.0.0.1")
		mustAdmit(t, room, client, "1234")
		want := fmt.Sprintf("USER_%03d", i)
		if client.UserID != want {
			t.Fatalf("expected %s, got %s", want, client.UserID)
		}
		last = client.UserID
		room.Remove(client)
	}
	if last != "USER_1000" {
		t.Fatalf("expected USER_1000, got %s", last)
	}
}

func TestAdmitRejectionOrder(t *testing.T) {
	room := NewRoom("1234", 1, 1)
	mustAdmit(t, room, newTestClient("10.0.0.1"), "1234")

	// Same address: the per-address limit wins even though the room is
	// also full and the code is wrong.
	err := room.Admit(newTestClient("10.0.0.1"), "chat", "wrong")
	if err != errIPLimit {
		t.Fatalf("expected errIPLimit, got %v", err)
	}

	// Fresh address: capacity is checked next.
	err = room.Admit(newTestClient("10.0.0.2"), "chat", "wrong")
	if err != errRoomFull {
		t.Fatalf("expected errRoomFull, got %v", err)
	}
	if room.IPCount("10.0.0.2") != 0 {
		t.Fatalf("rejected client must not increment the address count")
	}
}

func TestAdmitNeedsAuthTagThenValidCode(t *testing.T) {
	room := NewRoom("1234", 10, 10)

	if err := room.Admit(newTestClient("10.0.0.1"), "chat", "1234"); err != errNeedAuth {
		t.Fatalf("expected errNeedAuth, got %v", err)
	}
	if err := room.Admit(newTestClient("10.0.0.1"), "auth", "9999"); err != errBadCode {
		t.Fatalf("expected errBadCode, got %v", err)
	}
	if room.Size() != 0 {
		t.Fatalf("expected empty room, size=%d", room.Size())
	}
}

func TestRemoveIsIdempotentAndDropsZeroEntries(t *testing.T) {
	room := NewRoom("1234", 10, 10)

	a := newTestClient("10.0.0.1")
	b := newTestClient("10.0.0.1")
	mustAdmit(t, room, a, "1234")
	mustAdmit(t, room, b, "1234")
	if room.IPCount("10.0.0.1") != 2 {
		t.Fatalf("expected count 2, got %d", room.IPCount("10.0.0.1"))
	}

	if !room.Remove(a) {
		t.Fatal("first remove should report membership")
	}
	if room.Remove(a) {
		t.Fatal("second remove should be a no-op")
	}
	if room.IPCount("10.0.0.1") != 1 {
		t.Fatalf("expected count 1 after one removal, got %d", room.IPCount("10.0.0.1"))
	}

	room.Remove(b)
	if _, ok := room.IPCounts()["10.0.0.1"]; ok {
		t.Fatal("zero-count address must be dropped from the table, not kept at 0")
	}

	if room.Remove(newTestClient("10.0.0.9")) {
		t.Fatal("removing a never-admitted client should be a no-op")
	}
}

func TestConcurrentAdmitSameAddressRespectsLimit(t *testing.T) {
	room := NewRoom("1234", 100, 1)

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := room.Admit(newTestClient("10.0.0.1"), "auth", "1234"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("expected exactly 1 admission from the same address, got %d", admitted)
	}
	if room.IPCount("10.0.0.1") != 1 {
		t.Fatalf("expected address count 1, got %d", room.IPCount("10.0.0.1"))
	}
}

func TestConcurrentAdmitNeverExceedsCapacity(t *testing.T) {
	const maxClients = 5
	room := NewRoom("1234", maxClients, 100)

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			client := newTestClient(fmt.Sprintf("10.0.0.%d", n))
			if err := room.Admit(client, "auth", "1234"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if admitted != maxClients {
		t.Fatalf("expected exactly %d admissions, got %d", maxClients, admitted)
	}
	if room.Size() != maxClients {
		t.Fatalf("expected size %d, got %d", maxClients, room.Size())
	}
}

func TestBroadcastDeliversSameBytesToAllMembers(t *testing.T) {
	room := NewRoom("1234", 10, 10)

	a := newTestClient("10.0.0.1")
	b := newTestClient("10.0.0.2")
	mustAdmit(t, room, a, "1234")
	mustAdmit(t, room, b, "1234")

	room.Broadcast(systemEvent{Type: "system", Message: "USER_001 joined"})

	for _, client := range []*Client{a, b} {
		select {
		case payload := <-client.SendQueue:
			var event systemEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("unmarshal broadcast: %v", err)
			}
			if event.Type != "system" || event.Message != "USER_001 joined" {
				t.Fatalf("unexpected broadcast payload: %s", payload)
			}
		default:
			t.Fatalf("client %s did not receive the broadcast", client.IP)
		}
	}
}
