package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/repositories"
	"gorm.io/gorm"
)

// FriendshipHandler handles HTTP requests for the friend-request / friendship
// / block state machine.
type FriendshipHandler struct {
	relationshipRepository repositories.RelationshipRepository
	userRepository         repositories.UserRepository
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(relationshipRepo repositories.RelationshipRepository, userRepo repositories.UserRepository) *FriendshipHandler {
	return &FriendshipHandler{
		relationshipRepository: relationshipRepo,
		userRepository:         userRepo,
	}
}

// RegisterFriendshipRoutes registers friendship-related routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/friends/requests", h.SendFriendRequest)
	g.GET("/friends/requests/incoming", h.GetIncomingRequests)
	g.GET("/friends/requests/outgoing", h.GetOutgoingRequests)
	g.POST("/friends/requests/:id/accept", h.AcceptFriendRequest)
	g.POST("/friends/requests/:id/reject", h.RejectFriendRequest)
	g.DELETE("/friends/requests/:id", h.CancelFriendRequest)
	g.GET("/friends", h.GetFriends)
	g.GET("/friends/status/:id", h.GetRelationshipStatus)
	g.POST("/users/:id/block", h.BlockUser)
	g.DELETE("/users/:id/block", h.UnblockUser)
}

// SendFriendRequest handles sending a friend request
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateFriendRequestPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// The receiver must resolve before the state machine runs
	if _, err := h.userRepository.GetUserByID(req.ReceiverID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Receiver user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	request, err := h.relationshipRepository.SendRequest(currentUserID, req.ReceiverID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, request)
}

// GetIncomingRequests lists pending requests addressed to the current user.
func (h *FriendshipHandler) GetIncomingRequests(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requests, err := h.relationshipRepository.ListIncoming(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views, err := h.annotateRequests(requests)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, views)
}

// GetOutgoingRequests lists pending requests the current user has sent.
func (h *FriendshipHandler) GetOutgoingRequests(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requests, err := h.relationshipRepository.ListOutgoing(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views, err := h.annotateRequests(requests)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, views)
}

func (h *FriendshipHandler) annotateRequests(requests []models.FriendRequest) ([]models.FriendRequestView, error) {
	ids := make([]uint, 0, len(requests)*2)
	for _, r := range requests {
		ids = append(ids, r.SenderID, r.ReceiverID)
	}
	summaries, err := h.userRepository.GetSummaries(ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.FriendRequestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, models.FriendRequestView{
			FriendRequest: r,
			Sender:        summaries[r.SenderID],
			Receiver:      summaries[r.ReceiverID],
		})
	}
	return views, nil
}

// AcceptFriendRequest accepts a pending request addressed to the current user.
func (h *FriendshipHandler) AcceptFriendRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request ID")
	}

	rel, err := h.relationshipRepository.AcceptRequest(currentUserID, uint(requestID))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

// RejectFriendRequest rejects a pending request addressed to the current user.
func (h *FriendshipHandler) RejectFriendRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request ID")
	}

	if err := h.relationshipRepository.RejectRequest(currentUserID, uint(requestID)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelFriendRequest cancels a pending request the current user sent.
func (h *FriendshipHandler) CancelFriendRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request ID")
	}

	if err := h.relationshipRepository.CancelRequest(currentUserID, uint(requestID)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetFriends retrieves the list of friends for the authenticated user
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	rels, err := h.relationshipRepository.ListFriends(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]uint, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.OtherUser(currentUserID))
	}
	summaries, err := h.userRepository.GetSummaries(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	friends := make([]models.FriendView, 0, len(rels))
	for _, rel := range rels {
		friends = append(friends, models.FriendView{
			Friend:  summaries[rel.OtherUser(currentUserID)],
			SinceAt: rel.CreatedAt.Unix(),
		})
	}
	return c.JSON(http.StatusOK, friends)
}

// GetRelationshipStatus resolves the relationship state toward another user.
func (h *FriendshipHandler) GetRelationshipStatus(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	otherID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	status, err := h.relationshipRepository.Status(currentUserID, uint(otherID))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// BlockUser blocks another user
func (h *FriendshipHandler) BlockUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	if _, err := h.userRepository.GetUserByID(uint(targetID)); err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	rel, err := h.relationshipRepository.Block(currentUserID, uint(targetID))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

// UnblockUser lifts a block the current user placed
func (h *FriendshipHandler) UnblockUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	if err := h.relationshipRepository.Unblock(currentUserID, uint(targetID)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
