// Package auth authenticates operators and guards admin routes.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kilianp07/vending/core/logger"
	corestore "github.com/kilianp07/vending/core/store"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrNoAdminID          = errors.New("no adminId provided")
)

// HashPassword hashes pw with the default bcrypt cost.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Service checks admin credentials against the store.
type Service struct {
	admins corestore.Admins
	log    logger.Logger
}

func NewService(admins corestore.Admins, log logger.Logger) *Service {
	return &Service{admins: admins, log: log}
}

// Login returns the admin matching username and password.
func (s *Service) Login(ctx context.Context, username, password string) (corestore.Admin, error) {
	if username == "" || password == "" {
		return corestore.Admin{}, ErrMissingCredentials
	}
	a, err := s.admins.AdminByUsername(ctx, username)
	if errors.Is(err, corestore.ErrNotFound) {
		s.log.Infof("login failed: unknown username %s", username)
		return corestore.Admin{}, ErrInvalidCredentials
	}
	if err != nil {
		return corestore.Admin{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		s.log.Infof("login failed: password mismatch for %s", username)
		return corestore.Admin{}, ErrInvalidCredentials
	}
	s.log.Infof("admin %s logged in", username)
	return a, nil
}

// UpdateCredentials changes the username and/or password of an admin after
// checking the current password. Empty new values keep the old ones.
func (s *Service) UpdateCredentials(ctx context.Context, id int, current, newUsername, newPassword string) error {
	a, err := s.admins.AdminByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}
	hash := a.PasswordHash
	if newPassword != "" {
		if hash, err = HashPassword(newPassword); err != nil {
			return err
		}
	}
	username := a.Username
	if newUsername != "" {
		username = newUsername
	}
	if err := s.admins.UpdateAdmin(ctx, id, username, hash); err != nil {
		return err
	}
	s.log.Infof("admin %d credentials updated", id)
	return nil
}

type ctxKey struct{}

// AdminFromContext returns the admin stored by RequireAdmin.
func AdminFromContext(ctx context.Context) (corestore.Admin, bool) {
	a, ok := ctx.Value(ctxKey{}).(corestore.Admin)
	return a, ok
}

// RequireAdmin rejects requests whose adminId does not reference an admin.
// The id is read from the X-Admin-Id header, the adminId query parameter,
// a multipart form field or the JSON body, in that order.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := adminID(r)
		if err != nil {
			s.log.Infof("authentication failed: %v", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}
		a, err := s.admins.AdminByID(r.Context(), id)
		if errors.Is(err, corestore.ErrNotFound) {
			s.log.Infof("authentication failed: no admin %d", id)
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid adminId")
			return
		}
		if err != nil {
			s.log.Errorf("authentication error: %v", err)
			writeError(w, http.StatusInternalServerError, "Server error during authentication: "+err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, a)))
	})
}

// AdminID accepts both JSON numbers and strings.
type AdminID int

func (a *AdminID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("adminId: %w", err)
	}
	*a = AdminID(n)
	return nil
}

const maxPeek = 1 << 20

func adminID(r *http.Request) (int, error) {
	raw := r.Header.Get("X-Admin-Id")
	if raw == "" {
		raw = r.URL.Query().Get("adminId")
	}
	if raw == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		raw = r.FormValue("adminId")
	}
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid adminId %q", raw)
		}
		return n, nil
	}
	if r.Body == nil {
		return 0, ErrNoAdminID
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeek))
	if err != nil {
		return 0, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	var payload struct {
		AdminID AdminID `json:"adminId"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || payload.AdminID == 0 {
		return 0, ErrNoAdminID
	}
	return int(payload.AdminID), nil
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
