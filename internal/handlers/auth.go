package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pulsegram/apiserver/internal/logging"
	"github.com/pulsegram/apiserver/types"
)

const (
	dateLayout = "2006-01-02"
	tokenType  = "bearer"
)

// AccountService is the account use-case surface the auth routes need.
type AccountService interface {
	Register(ctx context.Context, draft types.UserDraft) (types.User, string, error)
	Login(ctx context.Context, login, password string) (types.User, string, error)
	Profile(ctx context.Context, userID int) (types.User, error)
	UpdateProfile(ctx context.Context, actorID int, username string, patch types.UserPatch) (types.User, error)
}

// AuthHandler provides signup, login and profile endpoints.
type AuthHandler struct {
	accounts AccountService
	logger   logging.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(accounts AccountService, logger logging.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, accounts AccountService, logger logging.Logger, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAuthHandler(accounts, logger)

	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/profile", handler.Profile)
	r.With(authMiddleware).Put("/{username}", handler.UpdateProfile)
}

// Signup creates a new account and returns an access token.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_of_birth")
		return
	}

	user, token, err := h.accounts.Register(r.Context(), types.UserDraft{
		Email:       req.Email,
		Username:    req.Username,
		Name:        req.Name,
		Password:    req.Password,
		DateOfBirth: dob,
		Gender:      types.Gender(strings.ToLower(strings.TrimSpace(req.Gender))),
		Bio:         req.Bio,
		Location:    req.Location,
		ProfilePic:  req.ProfilePic,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		Username:    user.Username,
	})
}

// Login accepts a username or email with a password, as JSON or as a
// url-encoded form, and returns an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		Username:    user.Username,
	})
}

// Profile returns the current authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile applies a partial update to the caller's own profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	patch, err := req.patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.accounts.UpdateProfile(r.Context(), userID, chi.URLParam(r, "username"), patch); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type SignupRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Location    string `json:"location,omitempty"`
	ProfilePic  string `json:"profile_pic,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProfileUpdateRequest carries optional fields; absent fields are left
// unchanged.
type ProfileUpdateRequest struct {
	Username    *string `json:"username"`
	Name        *string `json:"name"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	ProfilePic  *string `json:"profile_pic"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

func (req ProfileUpdateRequest) patch() (types.UserPatch, error) {
	patch := types.UserPatch{
		Username:   req.Username,
		Name:       req.Name,
		Bio:        req.Bio,
		Location:   req.Location,
		ProfilePic: req.ProfilePic,
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil || dob == nil {
			return types.UserPatch{}, errors.New("invalid date_of_birth")
		}
		patch.DateOfBirth = dob
	}
	if req.Gender != nil {
		gender := types.Gender(strings.ToLower(strings.TrimSpace(*req.Gender)))
		patch.Gender = &gender
	}
	return patch, nil
}

func decodeLogin(r *http.Request) (LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return LoginRequest{}, err
		}
		return LoginRequest{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}, nil
	default:
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return LoginRequest{}, err
		}
		return req, nil
	}
}

// parseDate accepts YYYY-MM-DD or RFC 3339. An empty value is nil.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}
