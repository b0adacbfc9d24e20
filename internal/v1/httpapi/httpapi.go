// Package httpapi serves the REST surface: room creation and listing, and
// user registration.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openconquer/generals-server/internal/v1/hub"
	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/room"
	"github.com/openconquer/generals-server/internal/v1/store"
)

const (
	maxRoomIDLength   = 10
	maxPasswordLength = 20
	maxPageSize       = 100
	defaultPageSize   = 10
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// UserStore is the registration surface the handler needs; nil when the
// server runs without a database.
type UserStore interface {
	Create(ctx context.Context, userID, username string) (*store.User, error)
	GetByID(ctx context.Context, userID string) (*store.User, error)
}

// Handler bundles the REST endpoints over the hub and the optional user
// store.
type Handler struct {
	hub   *hub.Hub
	users UserStore
}

func NewHandler(h *hub.Hub, users UserStore) *Handler {
	return &Handler{hub: h, users: users}
}

// RegisterRoutes mounts the API under the given router group.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/createRoom", h.CreateRoom)
	r.GET("/getRooms", h.GetRooms)
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUser)
}

type createRoomRequest struct {
	RoomID     string  `json:"room_id"`
	Name       string  `json:"name"`
	MaxPlayers int     `json:"max_players"`
	RoomColor  string  `json:"room_color"`
	HostName   string  `json:"host_name"`
	HostID     string  `json:"host_id"`
	Password   *string `json:"password"`
	IsPublic   bool    `json:"is_public"`
}

func validationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": message})
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// CreateRoom validates the settings and registers the room with the hub.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "invalid request body")
		return
	}

	if len(req.RoomID) > maxRoomIDLength || !isAlphanumeric(req.RoomID) {
		validationError(c, "room_id must be at most 10 alphanumeric characters")
		return
	}
	if err := room.ValidateName(req.Name); err != nil {
		validationError(c, "invalid room name: "+err.Error())
		return
	}
	if req.MaxPlayers < room.MinPlayers || req.MaxPlayers > room.MaxPlayers {
		validationError(c, "max_players must be between 2 and 16")
		return
	}
	if !colorPattern.MatchString(req.RoomColor) {
		validationError(c, "room_color must be # followed by 6 hex digits")
		return
	}
	if req.HostID == "" || req.HostName == "" {
		validationError(c, "host_id and host_name are required")
		return
	}
	if req.Password != nil && len(*req.Password) > maxPasswordLength {
		validationError(c, "password must be at most 20 characters")
		return
	}

	summary, err := h.hub.CreateRoom(req.RoomID, req.Name, req.RoomColor, req.MaxPlayers,
		req.Password, req.HostID, req.HostName, req.IsPublic)
	if errors.Is(err, hub.ErrRoomExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": "room id already exists"})
		return
	}
	if err != nil {
		logging.Error(c.Request.Context(), "Room creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "could not create room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":     summary.ID,
		"name":        summary.Name,
		"max_players": summary.MaxPlayers,
		"room_color":  summary.Color,
		"host_name":   summary.HostName,
		"status":      summary.Status,
		"message":     "room created",
	})
}

// GetRooms lists public rooms with start/end pagination.
func (h *Handler) GetRooms(c *gin.Context) {
	start, err := strconv.Atoi(c.DefaultQuery("start", "0"))
	if err != nil || start < 0 {
		validationError(c, "start must be a non-negative integer")
		return
	}
	end, err := strconv.Atoi(c.DefaultQuery("end", strconv.Itoa(start+defaultPageSize)))
	if err != nil {
		validationError(c, "end must be an integer")
		return
	}
	if start > end {
		validationError(c, "start must not exceed end")
		return
	}
	if end-start > maxPageSize {
		validationError(c, "page size must be at most 100")
		return
	}

	all := h.hub.ListRooms()
	total := len(all)

	if start > total {
		start = total
	}
	limit := end
	if limit > total {
		limit = total
	}
	page := all[start:limit]
	if page == nil {
		page = []room.Summary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms":       page,
		"total_count": total,
		"start":       start,
		"end":         end,
		"has_more":    end < total,
	})
}

type createUserRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// CreateUser registers a (user_id, username) pair.
func (h *Handler) CreateUser(c *gin.Context) {
	if h.users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store disabled"})
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Username == "" {
		validationError(c, "user_id and username are required")
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.UserID, req.Username)
	switch {
	case errors.Is(err, store.ErrForbiddenName):
		validationError(c, "username contains a forbidden word")
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": "user id or username already taken"})
	case err != nil:
		logging.Error(c.Request.Context(), "User creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "could not create user"})
	default:
		c.JSON(http.StatusOK, user)
	}
}

// GetUser looks up a registration by id.
func (h *Handler) GetUser(c *gin.Context) {
	if h.users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store disabled"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "user not found"})
	case err != nil:
		logging.Error(c.Request.Context(), "User lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "could not fetch user"})
	default:
		c.JSON(http.StatusOK, user)
	}
}
