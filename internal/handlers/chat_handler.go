package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/access"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/repositories"
	"gorm.io/gorm"
)

// ChatHandler handles HTTP requests for opening and listing chats
type ChatHandler struct {
	chatRepository         repositories.ChatRepository
	messageRepository      repositories.MessageRepository
	userRepository         repositories.UserRepository
	relationshipRepository repositories.RelationshipRepository
	memberRepository       repositories.GroupMemberRepository
	gate                   *access.Gate
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	relationshipRepo repositories.RelationshipRepository,
	memberRepo repositories.GroupMemberRepository,
	gate *access.Gate,
) *ChatHandler {
	return &ChatHandler{
		chatRepository:         chatRepo,
		messageRepository:      messageRepo,
		userRepository:         userRepo,
		relationshipRepository: relationshipRepo,
		memberRepository:       memberRepo,
		gate:                   gate,
	}
}

// RegisterChatRoutes registers chat-related routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chats/direct", h.OpenDirectChat)
	g.POST("/chats/group", h.OpenGroupChat)
	g.GET("/chats", h.ListDirectChats)
	g.GET("/chats/:id", h.GetChat)
}

// OpenDirectChat resolves or creates the one direct chat with another user.
// Repeated and concurrent calls for the same pair return the same chat.
func (h *ChatHandler) OpenDirectChat(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateDirectChatPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if _, err := h.userRepository.GetUserByID(req.UserID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	chat, err := h.chatRepository.GetOrCreateDirect(currentUserID, req.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

// OpenGroupChat resolves or creates the chat bound to a group the current
// user is an active member of.
func (h *ChatHandler) OpenGroupChat(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateGroupChatPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	active, err := h.memberRepository.IsActiveMember(req.GroupID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !active {
		return echo.NewHTTPError(http.StatusForbidden, "User is not an active member of this group")
	}

	chat, err := h.chatRepository.GetOrCreateGroup(req.GroupID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

// ListDirectChats lists the user's direct chats annotated with the other
// participant, the last message, the unread count and the relationship
// status. Either side of the annotation may be absent: a chat with no
// messages yet, or a pair with no relationship row.
func (h *ChatHandler) ListDirectChats(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	chats, err := h.chatRepository.ListDirectChats(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]uint, 0, len(chats))
	for i := range chats {
		ids = append(ids, chats[i].OtherParticipant(currentUserID))
	}
	summaries, err := h.userRepository.GetSummaries(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ctx := c.Request().Context()
	result := make([]models.DirectChatSummary, 0, len(chats))
	for i := range chats {
		chat := chats[i]
		otherID := chat.OtherParticipant(currentUserID)

		lastMessage, err := h.messageRepository.LastMessage(ctx, chat.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		unread, err := h.messageRepository.CountUnread(ctx, chat.ID, currentUserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		status, err := h.relationshipRepository.Status(currentUserID, otherID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		result = append(result, models.DirectChatSummary{
			Chat:               chat,
			OtherUser:          summaries[otherID],
			LastMessage:        lastMessage,
			UnreadCount:        unread,
			RelationshipStatus: status,
		})
	}
	return c.JSON(http.StatusOK, result)
}

// GetChat returns one chat the user may read.
func (h *ChatHandler) GetChat(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	chatID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid chat ID")
	}

	chat, err := h.chatRepository.GetChatByID(uint(chatID))
	if err != nil {
		return httpError(err)
	}
	if err := h.gate.CanRead(currentUserID, chat); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}
