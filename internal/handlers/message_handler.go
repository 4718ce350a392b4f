package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/access"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/realtime"
	"github.com/studylink/backend/internal/repositories"
	"github.com/studylink/backend/pkg/apperrors"
	"github.com/studylink/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageHandler drives the message pipeline: persist, attach, touch the
// chat, then fan out. Persistence success is the source of truth; delivery
// over the hub is best effort.
type MessageHandler struct {
	chatRepository    repositories.ChatRepository
	messageRepository repositories.MessageRepository
	userRepository    repositories.UserRepository
	gate              *access.Gate
	blobStorage       storage.BlobStorage
	emitter           realtime.Emitter
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	gate *access.Gate,
	blobStorage storage.BlobStorage,
	emitter realtime.Emitter,
) *MessageHandler {
	return &MessageHandler{
		chatRepository:    chatRepo,
		messageRepository: messageRepo,
		userRepository:    userRepo,
		gate:              gate,
		blobStorage:       blobStorage,
		emitter:           emitter,
	}
}

// RegisterMessageRoutes registers message-related routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/chats/:id/messages", h.SendMessage)
	g.GET("/chats/:id/messages", h.ListMessages)
	g.POST("/chats/:id/read", h.MarkChatRead)
	g.DELETE("/chats/:id/messages/:messageID", h.DeleteMessage)
}

// SendMessage creates a message in a chat. Accepts a JSON body with content,
// or a multipart form with content and attachment files. The message row is
// persisted first and is readable right away; attachment uploads run
// concurrently and append as they finish. A failed upload surfaces as a
// storage error but never retracts the message or the attachments that did
// store.
func (h *MessageHandler) SendMessage(c echo.Context) error {
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
	if err := h.gate.CanWrite(currentUserID, chat); err != nil {
		return httpError(err)
	}

	content, files, err := h.parseSendRequest(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		return httpError(apperrors.ErrEmptyMessage)
	}
	if len(files) > 0 && h.blobStorage == nil {
		return httpError(apperrors.StorageFailed(errors.New("no attachment storage configured")))
	}

	ctx := c.Request().Context()
	msg := &models.Message{
		ChatID:   chat.ID,
		SenderID: currentUserID,
		Content:  content,
	}
	if err := h.messageRepository.CreateMessage(ctx, msg); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.chatRepository.TouchChat(chat.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	attachments, uploadErr := h.storeAttachments(c, msg.ID, chat.ID, files)
	msg.Attachments = attachments

	h.emitMessage(chat, currentUserID, msg)

	if uploadErr != nil {
		// Message and the successful attachments are already persisted.
		return httpError(apperrors.StorageFailed(uploadErr))
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) parseSendRequest(c echo.Context) (string, []*multipart.FileHeader, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return "", nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
		}
		return c.FormValue("content"), form.File["attachments"], nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return req.Content, nil, nil
}

// storeAttachments uploads every file concurrently, appending each stored
// attachment to the message as its upload completes. Returns the attachments
// that stored and the first upload error, if any.
func (h *MessageHandler) storeAttachments(c echo.Context, messageID primitive.ObjectID, chatID uint, files []*multipart.FileHeader) ([]models.Attachment, error) {
	if len(files) == 0 {
		return []models.Attachment{}, nil
	}

	ctx := c.Request().Context()
	folder := "chats/" + strconv.FormatUint(uint64(chatID), 10)

	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		attachments []models.Attachment
		firstErr    error
	)
	for _, fh := range files {
		wg.Add(1)
		go func(fh *multipart.FileHeader) {
			defer wg.Done()

			src, err := fh.Open()
			if err == nil {
				defer src.Close()
				var stored *storage.StoredObject
				mimeType := fh.Header.Get("Content-Type")
				stored, err = h.blobStorage.Store(ctx, src, mimeType, folder, fh.Filename)
				if err == nil {
					att := models.Attachment{
						ID:       primitive.NewObjectID().Hex(),
						Kind:     attachmentKind(stored.MimeType),
						Name:     fh.Filename,
						URL:      stored.URL,
						Size:     stored.Size,
						MimeType: stored.MimeType,
					}
					err = h.messageRepository.AppendAttachment(ctx, messageID, att)
					if err == nil {
						mu.Lock()
						attachments = append(attachments, att)
						mu.Unlock()
						return
					}
				}
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}(fh)
	}
	wg.Wait()
	return attachments, firstErr
}

func attachmentKind(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return models.AttachmentKindImage
	}
	return models.AttachmentKindFile
}

// emitMessage routes the materialized message to the direct counterpart's
// user room, or to the chat room for groups.
func (h *MessageHandler) emitMessage(chat *models.Chat, senderID uint, msg *models.Message) {
	view := models.MessageView{Message: *msg}
	if sender, err := h.userRepository.GetUserByID(senderID); err == nil {
		view.Sender = sender.Summary()
	}
	event := realtime.Event{
		Type:    realtime.EventMessageReceived,
		Payload: realtime.MessagePayload{ChatID: chat.ID, Message: view},
	}
	switch chat.Kind {
	case models.ChatKindDirect:
		if other := chat.OtherParticipant(senderID); other != 0 {
			h.emitter.ToUser(other, event)
		}
	case models.ChatKindGroup:
		h.emitter.ToChat(chat.ID, event)
	}
}

// ListMessages pages the chat history: up to limit messages strictly older
// than before, returned in chronological order with sender projections.
func (h *MessageHandler) ListMessages(c echo.Context) error {
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

	before := time.Now()
	if raw := c.QueryParam("before"); raw != "" {
		before, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid before timestamp")
		}
	}
	limit := int64(defaultPageSize)
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}

	ctx := c.Request().Context()
	messages, err := h.messageRepository.ListBefore(ctx, chat.ID, before, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]uint, 0, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].SenderID)
	}
	summaries, err := h.userRepository.GetSummaries(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views := make([]models.MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, models.MessageView{
			Message: messages[i],
			Sender:  summaries[messages[i].SenderID],
		})
	}
	return c.JSON(http.StatusOK, views)
}

// MarkChatRead bulk-advances the counterpart's messages to seen on a direct
// chat and notifies the counterpart when anything changed. Group chats and
// non-participants no-op silently; a repeat call changes nothing and emits
// nothing.
func (h *MessageHandler) MarkChatRead(c echo.Context) error {
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
	if chat.Kind != models.ChatKindDirect || !chat.IsParticipant(currentUserID) {
		return c.JSON(http.StatusOK, echo.Map{"updated": 0})
	}

	counterpart := chat.OtherParticipant(currentUserID)
	changed, err := h.messageRepository.MarkSeen(c.Request().Context(), chat.ID, counterpart)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if changed > 0 {
		h.emitter.ToUser(counterpart, realtime.Event{
			Type:    realtime.EventChatRead,
			Payload: realtime.ChatReadPayload{ChatID: chat.ID, ReaderID: currentUserID},
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": changed})
}

// DeleteMessage soft-deletes the current user's own message.
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	messageID, err := primitive.ObjectIDFromHex(c.Param("messageID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message ID")
	}

	if err := h.messageRepository.SoftDeleteMessage(c.Request().Context(), messageID, currentUserID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
