// Package auth implements the login surface (C17): a single credential
// comparison against admin environment variables. No session store, no
// JWT issuance — that subsystem is a deliberate Non-goal.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cgast/embird/internal/handler/http/respond"
)

var (
	errInvalidBody        = errors.New("invalid request body")
	errInvalidCredentials = errors.New("invalid credentials")
)

// Handler serves the C17 login route.
type Handler struct {
	AdminEmail    string
	AdminPassword string
}

// Register mounts the auth route on mux.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("/api/auth/login", h.handleLogin)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	if !h.validCredentials(req.Username, req.Password) {
		respond.Error(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	respond.JSON(w, http.StatusOK, loginResponse{Token: "authenticated"})
}

// validCredentials compares against the admin env vars in constant time to
// avoid leaking match length through timing.
func (h *Handler) validCredentials(username, password string) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(h.AdminEmail)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(h.AdminPassword)) == 1
	return h.AdminEmail != "" && h.AdminPassword != "" && userMatch && passMatch
}
