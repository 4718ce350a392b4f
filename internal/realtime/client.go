package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/studylink/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ChatLookup resolves a chat id for join and typing routing. ChatRepository
// satisfies it.
type ChatLookup interface {
	GetChatByID(id uint) (*models.Chat, error)
}

// inboundFrame is the only client-to-server message shape: room management and
// typing relay. Everything else goes through the REST API.
type inboundFrame struct {
	Action string `json:"action"` // join_chat, leave_chat, typing, stop_typing
	ChatID uint   `json:"chat_id"`
}

// Client is one authenticated websocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uint
	send    chan []byte
	chats   ChatLookup
	canRead func(userID uint, chat *models.Chat) error

	// rooms this client joined; guarded by hub.mu
	rooms map[string]struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint, chats ChatLookup, canRead func(userID uint, chat *models.Chat) error) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		send:    make(chan []byte, 64),
		chats:   chats,
		canRead: canRead,
		rooms:   make(map[string]struct{}),
	}
}

// Run places the client in its user room and starts both pumps. It returns
// when the connection closes.
func (c *Client) Run() {
	c.hub.join(userRoom(c.userID), c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: connection for user %d closed unexpectedly: %v", c.userID, err)
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame inboundFrame) {
	switch frame.Action {
	case "join_chat":
		chat, err := c.chats.GetChatByID(frame.ChatID)
		if err != nil {
			return
		}
		if err := c.canRead(c.userID, chat); err != nil {
			return
		}
		c.hub.join(chatRoom(chat.ID), c)
	case "leave_chat":
		c.hub.leave(chatRoom(frame.ChatID), c)
	case "typing", "stop_typing":
		c.relayTyping(frame)
	}
}

// relayTyping routes a typing indicator: to the counterpart's user room for
// direct chats, to the chat room minus the sender for groups.
func (c *Client) relayTyping(frame inboundFrame) {
	chat, err := c.chats.GetChatByID(frame.ChatID)
	if err != nil {
		return
	}
	if err := c.canRead(c.userID, chat); err != nil {
		return
	}
	eventType := EventTyping
	if frame.Action == "stop_typing" {
		eventType = EventStopTyping
	}
	event := Event{Type: eventType, Payload: TypingPayload{ChatID: chat.ID, UserID: c.userID}}
	switch chat.Kind {
	case models.ChatKindDirect:
		if other := chat.OtherParticipant(c.userID); other != 0 {
			c.hub.ToUser(other, event)
		}
	case models.ChatKindGroup:
		c.hub.ToChatExcept(chat.ID, c.userID, event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
