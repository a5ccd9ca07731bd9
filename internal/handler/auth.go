package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/store"
)

type AuthHandler struct {
	persons  *store.PersonStore
	sessions *store.SessionStore
	logger   *slog.Logger
}

func NewAuthHandler(persons *store.PersonStore, sessions *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{persons: persons, sessions: sessions, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string        `json:"token"`
	Person *model.Person `json:"person"`
}

// Login handles POST /login. Unknown email and wrong password return
// the same error so the endpoint can't be used to probe for accounts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	person, err := h.persons.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup person", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if person == nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	hash, err := h.persons.PasswordHash(person.ID)
	if err != nil {
		h.logger.Error("load password hash", "person_id", person.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	session, err := h.sessions.Create(person.ID)
	if err != nil {
		h.logger.Error("create session", "person_id", person.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("login", "person_id", person.ID, "role", person.Role)
	respondJSON(w, http.StatusOK, loginResponse{Token: session.Token, Person: person})
}

// Logout handles POST /logout and invalidates the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	session, err := h.sessions.GetByToken(token)
	if err != nil {
		h.logger.Error("lookup session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if session != nil {
		if err := h.sessions.Delete(session.ID); err != nil {
			h.logger.Error("delete session", "session_id", session.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
