package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

type createUserRequest struct {
	UserName string `json:"userName" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type authenticateRequest struct {
	UserName string `json:"userName" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// userData is the public view of a user.
func userData(u store.User) map[string]any {
	return map[string]any{
		"id":               u.ID,
		"userName":         u.UserName,
		"email":            u.Email,
		"globalPermission": u.GlobalPermission,
	}
}

var errTaken = errors.New("taken")

// CreateUser handles POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	var user store.User
	var conflict string
	err = h.store.Tx(func() error {
		if _, ok := h.store.UserByLogin(req.UserName); ok {
			conflict = "Username in use"
			return errTaken
		}
		if _, ok := h.store.UserByLogin(req.Email); ok {
			conflict = "Email address in use"
			return errTaken
		}
		user = h.store.Users.Insert(func(id int) store.User {
			return store.User{
				ID:               id,
				UserName:         req.UserName,
				Email:            strings.ToLower(req.Email),
				PasswordHash:     hash,
				GlobalPermission: store.PermissionOff,
				CreatedAt:        h.store.Clock.Now(),
			}
		})
		return nil
	})
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, conflict)
		return
	}

	token, err := h.auth.Issue(TokenUser, user.ID)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Debug("user created", "id", user.ID, "userName", user.UserName)
	twincore.Success(w, http.StatusOK, map[string]any{
		"token":    token,
		"userData": userData(user),
	}, "Created new user.")
}

// AuthenticateUser handles POST /api/v1/users/authenticate.
func (h *Handler) AuthenticateUser(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	login := req.UserName
	if login == "" {
		login = req.Email
	}
	user, ok := h.store.UserByLogin(login)
	if !ok || !checkPassword(user.PasswordHash, req.Password) {
		twincore.Error(w, http.StatusUnauthorized, "Wrong user name or password.")
		return
	}
	token, err := h.auth.Issue(TokenUser, user.ID)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	twincore.Success(w, http.StatusOK, map[string]any{
		"token":    token,
		"userData": userData(user),
	}, "Successful login.")
}
