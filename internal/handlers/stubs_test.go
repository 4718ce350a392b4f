package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/realtime"
	"github.com/studylink/backend/pkg/apperrors"
	"github.com/studylink/backend/pkg/validators"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// newTestContext builds an Echo context carrying the given authenticated user.
func newTestContext(method, target, contentType string, body io.Reader, userID uint) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validators.NewValidator()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user", &models.JwtCustomClaims{UserID: userID})
	}
	return c, rec
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

// --- user repository stub ---

type stubUserRepo struct {
	users map[uint]*models.User
}

func (s *stubUserRepo) CreateUser(user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) GetUserByID(id uint) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) GetUserByFirebaseUID(uid string) (*models.User, error) {
	for _, u := range s.users {
		if u.FirebaseUID == uid {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) GetSummaries(ids []uint) (map[uint]models.UserSummary, error) {
	out := make(map[uint]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (s *stubUserRepo) UpdateUser(user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) SearchUsers(query string) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Name), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

// --- chat repository stub ---

type stubChatRepo struct {
	chats   map[uint]*models.Chat
	nextID  uint
	touched []uint
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{chats: make(map[uint]*models.Chat), nextID: 1}
}

func (s *stubChatRepo) addDirect(a, b uint) *models.Chat {
	low, high := models.CanonicalPair(a, b)
	chat := &models.Chat{Kind: models.ChatKindDirect, UserLow: &low, UserHigh: &high}
	chat.ID = s.nextID
	s.nextID++
	s.chats[chat.ID] = chat
	return chat
}

func (s *stubChatRepo) addGroup(groupID uint) *models.Chat {
	chat := &models.Chat{Kind: models.ChatKindGroup, GroupID: &groupID}
	chat.ID = s.nextID
	s.nextID++
	s.chats[chat.ID] = chat
	return chat
}

func (s *stubChatRepo) GetOrCreateDirect(a, b uint) (*models.Chat, error) {
	if a == b {
		return nil, apperrors.ErrSelfReference
	}
	low, high := models.CanonicalPair(a, b)
	for _, chat := range s.chats {
		if chat.Kind == models.ChatKindDirect && *chat.UserLow == low && *chat.UserHigh == high {
			return chat, nil
		}
	}
	return s.addDirect(a, b), nil
}

func (s *stubChatRepo) GetOrCreateGroup(groupID uint) (*models.Chat, error) {
	for _, chat := range s.chats {
		if chat.Kind == models.ChatKindGroup && *chat.GroupID == groupID {
			return chat, nil
		}
	}
	return s.addGroup(groupID), nil
}

func (s *stubChatRepo) GetChatByID(id uint) (*models.Chat, error) {
	if chat, ok := s.chats[id]; ok {
		return chat, nil
	}
	return nil, apperrors.ErrChatNotFound
}

func (s *stubChatRepo) ListDirectChats(userID uint) ([]models.Chat, error) {
	var out []models.Chat
	for _, chat := range s.chats {
		if chat.Kind == models.ChatKindDirect && chat.IsParticipant(userID) {
			out = append(out, *chat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubChatRepo) TouchChat(id uint) error {
	s.touched = append(s.touched, id)
	return nil
}

// --- message repository stub ---

type stubMessageRepo struct {
	messages []models.Message
}

func (s *stubMessageRepo) CreateMessage(_ context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	msg.Status = models.MessageStatusSent
	msg.CreatedAt = time.Now()
	if msg.Attachments == nil {
		msg.Attachments = []models.Attachment{}
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *stubMessageRepo) AppendAttachment(_ context.Context, messageID primitive.ObjectID, att models.Attachment) error {
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Attachments = append(s.messages[i].Attachments, att)
			return nil
		}
	}
	return apperrors.ErrMessageNotFound
}

func (s *stubMessageRepo) GetMessageByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			msg := s.messages[i]
			return &msg, nil
		}
	}
	return nil, apperrors.ErrMessageNotFound
}

func (s *stubMessageRepo) ListBefore(_ context.Context, chatID uint, before time.Time, limit int64) ([]models.Message, error) {
	var out []models.Message
	for i := range s.messages {
		m := s.messages[i]
		if m.ChatID == chatID && m.CreatedAt.Before(before) && m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (s *stubMessageRepo) MarkSeen(_ context.Context, chatID, senderID uint) (int64, error) {
	var changed int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ChatID == chatID && m.SenderID == senderID && m.Status != models.MessageStatusSeen {
			m.Status = models.MessageStatusSeen
			changed++
		}
	}
	return changed, nil
}

func (s *stubMessageRepo) CountUnread(_ context.Context, chatID, viewerID uint) (int64, error) {
	var count int64
	for i := range s.messages {
		m := s.messages[i]
		if m.ChatID == chatID && m.SenderID != viewerID && m.Status != models.MessageStatusSeen && m.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *stubMessageRepo) LastMessage(_ context.Context, chatID uint) (*models.Message, error) {
	var last *models.Message
	for i := range s.messages {
		m := s.messages[i]
		if m.ChatID != chatID || m.DeletedAt != nil {
			continue
		}
		if last == nil || m.CreatedAt.After(last.CreatedAt) {
			msg := m
			last = &msg
		}
	}
	return last, nil
}

func (s *stubMessageRepo) SoftDeleteMessage(_ context.Context, id primitive.ObjectID, senderID uint) error {
	for i := range s.messages {
		m := &s.messages[i]
		if m.ID == id && m.SenderID == senderID && m.DeletedAt == nil {
			now := time.Now()
			m.DeletedAt = &now
			return nil
		}
	}
	return apperrors.ErrMessageNotFound
}

// --- relationship repository stub (scripted) ---

type stubRelationshipRepo struct {
	sendReq    *models.FriendRequest
	sendErr    error
	acceptRel  *models.Relationship
	acceptErr  error
	rejectErr  error
	cancelErr  error
	blockRel   *models.Relationship
	blockErr   error
	unblockErr error
	status     map[uint]string
	incoming   []models.FriendRequest
	outgoing   []models.FriendRequest
	friends    []models.Relationship
}

func (s *stubRelationshipRepo) SendRequest(senderID, receiverID uint) (*models.FriendRequest, error) {
	return s.sendReq, s.sendErr
}

func (s *stubRelationshipRepo) AcceptRequest(userID, requestID uint) (*models.Relationship, error) {
	return s.acceptRel, s.acceptErr
}

func (s *stubRelationshipRepo) RejectRequest(userID, requestID uint) error { return s.rejectErr }
func (s *stubRelationshipRepo) CancelRequest(userID, requestID uint) error { return s.cancelErr }

func (s *stubRelationshipRepo) Block(userID, targetID uint) (*models.Relationship, error) {
	return s.blockRel, s.blockErr
}

func (s *stubRelationshipRepo) Unblock(userID, targetID uint) error { return s.unblockErr }

func (s *stubRelationshipRepo) Status(userID, otherID uint) (string, error) {
	if status, ok := s.status[otherID]; ok {
		return status, nil
	}
	return models.RelationNone, nil
}

func (s *stubRelationshipRepo) ListIncoming(userID uint) ([]models.FriendRequest, error) {
	return s.incoming, nil
}

func (s *stubRelationshipRepo) ListOutgoing(userID uint) ([]models.FriendRequest, error) {
	return s.outgoing, nil
}

func (s *stubRelationshipRepo) ListFriends(userID uint) ([]models.Relationship, error) {
	return s.friends, nil
}

// --- group membership stub ---

type stubMembers struct {
	active map[uint]map[uint]bool
}

func (s *stubMembers) IsActiveMember(groupID, userID uint) (bool, error) {
	return s.active[groupID][userID], nil
}

func (s *stubMembers) Role(groupID, userID uint) (string, error) {
	if s.active[groupID][userID] {
		return models.GroupRoleMember, nil
	}
	return "", nil
}

// --- emitter stub ---

type emittedEvent struct {
	UserID uint
	ChatID uint
	Except uint
	Event  realtime.Event
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (f *fakeEmitter) ToUser(userID uint, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{UserID: userID, Event: event})
}

func (f *fakeEmitter) ToChat(chatID uint, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{ChatID: chatID, Event: event})
}

func (f *fakeEmitter) ToChatExcept(chatID, exceptUserID uint, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{ChatID: chatID, Except: exceptUserID, Event: event})
}

func (f *fakeEmitter) recorded() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emittedEvent, len(f.events))
	copy(out, f.events)
	return out
}
