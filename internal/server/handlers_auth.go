package server

import (
	"mime"
	"net/http"
	"time"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.deps.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

// handleLogin accepts the OAuth2 password form (username, password) used by
// the editor, or a JSON body with email and password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, r, domain.ErrInvalidRequest("invalid form body"))
			return
		}
		req.Email = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	default:
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, r, domain.ErrInvalidRequest("username and password are required"))
		return
	}

	token, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if domain.HTTPStatus(err) == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
