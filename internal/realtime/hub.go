package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub keeps the room membership for all open websocket connections. Rooms are
// named per user ("user:<id>") and per chat ("chat:<id>"); a connection is in
// its owner's user room for its whole lifetime and joins chat rooms on demand.
//
// One Hub is created at process start and injected into everything that emits;
// there is no package-level instance.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

func (h *Hub) join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[room] = clients
	}
	clients[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

func (h *Hub) leaveLocked(room string, c *Client) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// remove drops the client from every room it joined. Called once from the
// client's read pump on disconnect.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(room, c)
	}
	close(c.send)
}

// broadcast delivers data to every connection in room, skipping connections
// owned by exceptUserID (0 skips nobody). A full send buffer drops the event
// for that connection rather than blocking the caller.
func (h *Hub) broadcast(room string, data []byte, exceptUserID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if exceptUserID != 0 && c.userID == exceptUserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("realtime: dropping %q event for slow client (user %d)", room, c.userID)
		}
	}
}

func (h *Hub) emit(room string, event Event, exceptUserID uint) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to encode %s event: %v", event.Type, err)
		return
	}
	h.broadcast(room, data, exceptUserID)
}

func (h *Hub) ToUser(userID uint, event Event) {
	h.emit(userRoom(userID), event, 0)
}

func (h *Hub) ToChat(chatID uint, event Event) {
	h.emit(chatRoom(chatID), event, 0)
}

func (h *Hub) ToChatExcept(chatID, exceptUserID uint, event Event) {
	h.emit(chatRoom(chatID), event, exceptUserID)
}
