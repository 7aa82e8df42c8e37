package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/carpool/internal/auth"
	"github.com/example/carpool/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	u, err := s.Auth.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			fail(w, http.StatusConflict, err.Error())
			return
		}
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusCreated, *u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in models.LoginInput
	if !decode(w, r, &in) {
		return
	}
	token, u, err := s.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fail(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error("login failed", "err", err)
		fail(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}
	respond(w, http.StatusOK, models.AuthReply{Token: token, User: *u})
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := s.Auth.ConfirmEmail(r.Context(), token); err != nil {
		fail(w, http.StatusBadRequest, "Invalid or expired confirmation token.")
		return
	}
	respond(w, http.StatusOK, true)
}
