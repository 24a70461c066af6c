package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/crucial707/postfeed/internal/auth"
	"github.com/crucial707/postfeed/internal/middleware"
)

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	Auth *auth.Service
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if tooLarge(err) {
			JSONError(w, "Request body too large.", http.StatusRequestEntityTooLarge)
			return false
		}
		JSONError(w, "invalid JSON", http.StatusUnprocessableEntity)
		return false
	}
	return true
}

// ==========================
// Signup
// ==========================
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input auth.SignupInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.Auth.Signup(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created!",
		"userId":  user.ID.String(),
	})
}

// ==========================
// Login
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	res, err := h.Auth.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ==========================
// Status (authenticated)
// ==========================
func (h *AuthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}

	status, err := h.Auth.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *AuthHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}

	var input auth.StatusInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := h.Auth.SetStatus(r.Context(), userID, input); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User updated."})
}
