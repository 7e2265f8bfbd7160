package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/stylevault/backend/internal/db"
	apperrors "github.com/stylevault/backend/internal/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if err := validateRegisterRequest(&req); err != nil {
		return apperrors.ValidationError(err.Error())
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			return apperrors.EmailExists()
		case errors.Is(err, ErrUsernameExists):
			return apperrors.ValidationError("username already taken")
		}
		return apperrors.InternalError("failed to create user")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, toUserResponse(user))
	return nil
}

// Login accepts OAuth2-password-style form fields: "username" carries
// the email address. A JSON body with the same fields works too.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	email, password, err := loginCredentials(r)
	if err != nil {
		return err
	}

	pair, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return apperrors.InvalidCredentials()
		}
		return apperrors.InternalError("login failed")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, pair)
	return nil
}

// Refresh rotates a refresh token taken from the JSON body or, when
// the body carries none, from the Authorization header.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	token := refreshTokenFrom(r)
	if token == "" {
		return apperrors.ValidationError("refresh token is required")
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken),
			errors.Is(err, ErrMalformedClaims),
			errors.Is(err, ErrWrongTokenType),
			errors.Is(err, ErrTokenRevoked):
			return apperrors.InvalidToken()
		case errors.Is(err, ErrUserNotFound):
			return apperrors.UserNotFound()
		}
		return apperrors.InternalError("token refresh failed")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, pair)
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		return apperrors.InternalError("logout failed")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{
		"message": "successfully logged out",
	})
	return nil
}

func loginCredentials(r *http.Request) (email, password string, err error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			return "", "", apperrors.BadRequest("invalid request body")
		}
		email = req.Username
		if email == "" {
			email = req.Email
		}
		password = req.Password
	} else {
		if parseErr := r.ParseForm(); parseErr != nil {
			return "", "", apperrors.BadRequest("invalid form body")
		}
		email = r.PostFormValue("username")
		password = r.PostFormValue("password")
	}

	if email == "" || password == "" {
		return "", "", apperrors.ValidationError("username and password are required")
	}
	return email, password, nil
}

func refreshTokenFrom(r *http.Request) string {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if token, ok := bearerToken(r); ok {
		return token
	}
	return ""
}

func toUserResponse(user *db.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Username:  user.Username,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
	if user.ProfileImageURL.Valid {
		resp.ProfileImageURL = user.ProfileImageURL.String
	}
	return resp
}

func validateRegisterRequest(req *RegisterRequest) error {
	if req.Email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(req.Email) {
		return errors.New("invalid email format")
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	if len(req.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if req.Username == "" {
		return errors.New("username is required")
	}
	if len(req.Username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if len(req.Username) > 50 {
		return errors.New("username must be at most 50 characters")
	}
	return nil
}
