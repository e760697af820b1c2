package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/polyglot/internal/app/orch"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Accounts is the part of the account store the REST endpoints manage.
type Accounts interface {
	CreateUser(ctx context.Context, u *domain.User) error
	User(ctx context.Context, uid domain.UserID) (domain.User, error)
	CreateRoom(ctx context.Context, name string, private bool, members []domain.UserID) (domain.Room, error)
	RoomsFor(ctx context.Context, uid domain.UserID) ([]domain.Room, error)
}

type handlers struct {
	orch     *orch.Orchestrator
	accounts Accounts
}

type createUserRequest struct {
	FirstName string `json:"firstName" binding:"required,max=36"`
	LastName  string `json:"lastName" binding:"required,max=36"`
	Language  string `json:"language" binding:"omitempty,max=8"`
}

type signInRequest struct {
	UserID string `json:"userId" binding:"required,max=36"`
}

type createRoomRequest struct {
	Name      string          `json:"name" binding:"required,max=64"`
	IsPrivate bool            `json:"isPrivate"`
	Members   []domain.UserID `json:"members"`
}

type languageRequest struct {
	Language string `json:"language" binding:"required,max=8"`
}

type roomView struct {
	domain.Room
	Live int `json:"live"`
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrUserNotFound), errors.Is(err, core.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNameEmpty), errors.Is(err, domain.ErrNameTooLong),
		errors.Is(err, domain.ErrLanguageInvalid), errors.Is(err, domain.ErrRoomNameEmpty),
		errors.Is(err, domain.ErrRoomNameTooLong), errors.Is(err, domain.ErrTooFewMembers):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	u, err := domain.NewUser(req.FirstName, req.LastName, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.accounts.CreateUser(c.Request.Context(), u); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handlers) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid userId"})
		return
	}
	u, err := h.accounts.User(c.Request.Context(), domain.UserID(req.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(sessionUser, string(u.ID))
	if err := s.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) signOut(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listRooms returns the rooms the caller can see with their live counts.
func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.accounts.RoomsFor(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	live := make(map[domain.RoomID]int)
	for _, info := range h.orch.Rooms.List() {
		live[info.ID] = info.Live
	}
	out := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomView{Room: room, Live: live[room.ID]})
	}
	c.JSON(http.StatusOK, out)
}

// createRoom always includes the caller among the members.
func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	members := append([]domain.UserID{currentUser(c)}, req.Members...)
	room, err := h.accounts.CreateRoom(c.Request.Context(), req.Name, req.IsPrivate, members)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// history returns the room log for the caller. viewer=all returns every
// language variant.
func (h *handlers) history(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := domain.RoomID(c.Param("id"))
	uid := currentUser(c)
	if err := h.orch.Directory.Authorize(ctx, roomID, uid); err != nil {
		respondError(c, err)
		return
	}
	viewer := uid
	if c.Query("viewer") == "all" {
		viewer = ""
	}
	msgs, err := h.orch.History(ctx, roomID, viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handlers) setLanguage(c *gin.Context) {
	uid := domain.UserID(c.Param("id"))
	if uid != currentUser(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "can only change your own language"})
		return
	}
	var req languageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid language"})
		return
	}
	lang, err := h.orch.SetUserLanguage(c.Request.Context(), uid, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": uid, "language": lang})
}
