package users

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stylevault/backend/internal/auth"
	"github.com/stylevault/backend/internal/db"
	apperrors "github.com/stylevault/backend/internal/errors"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/storage"
	"github.com/stylevault/backend/internal/validators"
)

type userStore interface {
	UpdateProfileImage(ctx context.Context, id uuid.UUID, imageURL string) error
}

type profileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, profile *db.Profile) error
}

// UserResponse is the public account view, including the profile.
type UserResponse struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	Username        string           `json:"username"`
	ProfileImageURL string           `json:"profile_image_url,omitempty"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Profile         *ProfileResponse `json:"profile,omitempty"`
}

type Handlers struct {
	users    userStore
	profiles profileStore
	store    storage.Store
	mediaURL string
	log      *logger.Logger
}

// NewHandlers creates the user/profile handler set. mediaURL is the
// public prefix stored object URLs start with; it is needed to map an
// old profile image URL back to a storage key for deletion.
func NewHandlers(users userStore, profiles profileStore, store storage.Store, mediaURL string) *Handlers {
	return &Handlers{
		users:    users,
		profiles: profiles,
		store:    store,
		mediaURL: mediaURL,
		log:      logger.Default().WithComponent("users"),
	}
}

// Me handles GET /users/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	profile, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil {
		return apperrors.DatabaseError("failed to load profile").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toUserResponse(user, profile))
	return nil
}

// UpdateProfile handles PUT /users/me/profile.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	profile := req.toProfile()
	if profile.Details == nil && profile.Preferences == nil {
		return apperrors.ValidationError("nothing to update")
	}

	if err := h.profiles.Update(r.Context(), user.ID, profile); err != nil {
		return apperrors.DatabaseError("failed to update profile").WithCause(err)
	}

	updated, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil {
		return apperrors.DatabaseError("failed to load profile").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toUserResponse(user, updated))
	return nil
}

// UploadProfilePicture handles POST /users/me/profile-picture. The old
// picture is deleted best-effort: a storage hiccup there must not
// block the new upload.
func (h *Handlers) UploadProfilePicture(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	data, appErr := readUpload(r)
	if appErr != nil {
		return appErr
	}

	result := validators.ValidateImage(data)
	if !result.Valid {
		return apperrors.ValidationError(result.Error)
	}

	if user.ProfileImageURL.Valid && user.ProfileImageURL.String != "" {
		h.deleteObjectByURL(r.Context(), user.ProfileImageURL.String)
	}

	key := storage.ObjectKey("profile-pictures", user.ID.String(), result.Ext)
	if err := h.store.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), result.ContentType); err != nil {
		return apperrors.StorageError("failed to upload profile picture").WithCause(err)
	}
	url := h.store.URL(key)

	if err := h.users.UpdateProfileImage(r.Context(), user.ID, url); err != nil {
		// Roll back the orphaned object
		if delErr := h.store.Delete(r.Context(), key); delErr != nil {
			h.log.Error(r.Context(), "failed to clean up uploaded object after db error", delErr, map[string]interface{}{
				"key": key,
			})
		}
		return apperrors.DatabaseError("failed to save profile picture").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{
		"url":     url,
		"message": "profile picture uploaded successfully",
	})
	return nil
}

// DeleteProfilePicture handles DELETE /users/me/profile-picture. The
// database record is cleared even when the storage delete fails.
func (h *Handlers) DeleteProfilePicture(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	if !user.ProfileImageURL.Valid || user.ProfileImageURL.String == "" {
		apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{
			"message": "no profile picture to delete",
		})
		return nil
	}

	h.deleteObjectByURL(r.Context(), user.ProfileImageURL.String)

	if err := h.users.UpdateProfileImage(r.Context(), user.ID, ""); err != nil {
		return apperrors.DatabaseError("failed to clear profile picture").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{
		"message": "profile picture deleted successfully",
	})
	return nil
}

func (h *Handlers) deleteObjectByURL(ctx context.Context, url string) {
	key := storage.KeyFromURL(h.mediaURL, url)
	if key == "" {
		return
	}
	if err := h.store.Delete(ctx, key); err != nil {
		h.log.Warn(ctx, "failed to delete old object", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// readUpload pulls the "file" part out of a multipart form, capped
// just past the validation limit so oversize uploads fail cleanly.
func readUpload(r *http.Request) ([]byte, *apperrors.AppError) {
	if err := r.ParseMultipartForm(validators.MaxImageSize + 1); err != nil {
		return nil, apperrors.BadRequest("invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, apperrors.ValidationError("file field is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, validators.MaxImageSize+1))
	if err != nil {
		return nil, apperrors.BadRequest("failed to read uploaded file")
	}
	return data, nil
}

func toUserResponse(user *db.User, profile *db.Profile) UserResponse {
	resp := UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Username:  user.Username,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.ProfileImageURL.Valid {
		resp.ProfileImageURL = user.ProfileImageURL.String
	}
	resp.Profile = toProfileResponse(profile)
	return resp
}
