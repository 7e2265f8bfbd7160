package wardrobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stylevault/backend/internal/auth"
	"github.com/stylevault/backend/internal/db"
	apperrors "github.com/stylevault/backend/internal/errors"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/storage"
	"github.com/stylevault/backend/internal/validators"
)

// itemStore is the slice of the wardrobe repository the handlers need.
type itemStore interface {
	Create(ctx context.Context, item *db.Item, tagNames []string) error
	GetByID(ctx context.Context, userID, itemID uuid.UUID) (*db.Item, error)
	ListByUser(ctx context.Context, userID uuid.UUID, opts db.ItemListOptions) ([]*db.Item, error)
	Update(ctx context.Context, item *db.Item, tagNames []string) error
	SoftDelete(ctx context.Context, userID, itemID uuid.UUID) error
	SetImageURL(ctx context.Context, userID, itemID uuid.UUID, imageURL string) error
}

type ItemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Colors      []string `json:"colors"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	IsFavorite  bool     `json:"is_favorite"`
	Price       *float64 `json:"price"`
	Notes       string   `json:"notes"`
	Size        string   `json:"size"`
	Tags        []string `json:"tags"`
}

type ItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Colors      []string  `json:"colors"`
	Brand       string    `json:"brand,omitempty"`
	Category    string    `json:"category"`
	IsFavorite  bool      `json:"is_favorite"`
	Price       *float64  `json:"price,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Size        string    `json:"size,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Tags        []string  `json:"tags"`
}

type Handlers struct {
	items    itemStore
	store    storage.Store
	mediaURL string
	log      *logger.Logger
}

func NewHandlers(items itemStore, store storage.Store, mediaURL string) *Handlers {
	return &Handlers{
		items:    items,
		store:    store,
		mediaURL: mediaURL,
		log:      logger.Default().WithComponent("wardrobe"),
	}
}

// List handles GET /wardrobe/items.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("authentication required")
	}

	opts, err := listOptions(r)
	if err != nil {
		return err
	}

	items, err := h.items.ListByUser(r.Context(), user.ID, opts)
	if err != nil {
		return apperrors.DatabaseError("failed to list wardrobe items").WithCause(err)
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

// Create handles POST /wardrobe/items.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("authentication required")
	}

	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if err := validateItemRequest(&req); err != nil {
		return err
	}

	item := &db.Item{
		ID:          uuid.New(),
		UserID:      user.ID,
		Name:        req.Name,
		Description: req.Description,
		Colors:      req.Colors,
		Brand:       req.Brand,
		Category:    req.Category,
		IsFavorite:  req.IsFavorite,
		Price:       req.Price,
		Notes:       req.Notes,
		Size:        req.Size,
	}

	if err := h.items.Create(r.Context(), item, req.Tags); err != nil {
		if errors.Is(err, db.ErrInvalidCategory) {
			return apperrors.ValidationError("invalid item category")
		}
		return apperrors.DatabaseError("failed to create wardrobe item").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, toItemResponse(item))
	return nil
}

// Get handles GET /wardrobe/items/{item_id}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("authentication required")
	}

	itemID, err := itemIDFrom(r)
	if err != nil {
		return err
	}

	item, err := h.items.GetByID(r.Context(), user.ID, itemID)
	if err != nil {
		return itemError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toItemResponse(item))
	return nil
}

// Update handles PUT /wardrobe/items/{item_id}.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("authentication required")
	}

	itemID, err := itemIDFrom(r)
	if err != nil {
		return err
	}

	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if err := validateItemRequest(&req); err != nil {
		return err
	}

	item := &db.Item{
		ID:          itemID,
		UserID:      user.ID,
		Name:        req.Name,
		Description: req.Description,
		Colors:      req.Colors,
		Brand:       req.Brand,
		Category:    req.Category,
		IsFavorite:  req.IsFavorite,
		Price:       req.Price,
		Notes:       req.Notes,
		Size:        req.Size,
	}

	if err := h.items.Update(r.Context(), item, req.Tags); err != nil {
		if errors.Is(err, db.ErrInvalidCategory) {
			return apperrors.ValidationError("invalid item category")
		}
		return itemError(err)
	}

	// Re-read so the response carries the image URL and created_at.
	updated, err := h.items.GetByID(r.Context(), user.ID, itemID)
	if err != nil {
		return itemError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toItemResponse(updated))
	return nil
}

// Delete handles DELETE /wardrobe/items/{item_id}.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("authentication required")
	}

	itemID, err := itemIDFrom(r)
	if err != nil {
		return err
	}

	if err := h.items.SoftDelete(r.Context(), user.ID, itemID); err != nil {
		return itemError(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// UploadImage handles POST /wardrobe/items/{item_id}/image. The image
// is stored before the database row is touched; if the item turns out
// to be missing or the update fails, the uploaded object is removed.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.Unauthorized("authentication required")
	}

	itemID, err := itemIDFrom(r)
	if err != nil {
		return err
	}

	item, err := h.items.GetByID(r.Context(), user.ID, itemID)
	if err != nil {
		return itemError(err)
	}

	data, err := readUpload(r)
	if err != nil {
		return err
	}

	result := validators.ValidateImage(data)
	if !result.Valid {
		return apperrors.ValidationError(result.Error)
	}

	key := storage.ObjectKey("wardrobe-items", itemID.String(), result.Ext)
	if err := h.store.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), result.ContentType); err != nil {
		return apperrors.StorageError("failed to store item image").WithCause(err)
	}

	url := h.store.URL(key)
	if err := h.items.SetImageURL(r.Context(), user.ID, itemID, url); err != nil {
		h.deleteObject(r.Context(), key)
		return itemError(err)
	}

	// Replaced images are orphans in the bucket; clean them up.
	if item.ImageURL != "" && item.ImageURL != url {
		h.deleteObjectByURL(r.Context(), item.ImageURL)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{
		"url":     url,
		"message": "item image updated",
	})
	return nil
}

func (h *Handlers) deleteObject(ctx context.Context, key string) {
	if err := h.store.Delete(ctx, key); err != nil {
		h.log.Warn(ctx, "failed to delete item image", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (h *Handlers) deleteObjectByURL(ctx context.Context, url string) {
	key := storage.KeyFromURL(h.mediaURL, url)
	if key == "" {
		return
	}
	h.deleteObject(ctx, key)
}

func listOptions(r *http.Request) (db.ItemListOptions, error) {
	opts := db.ItemListOptions{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}

	if v := r.URL.Query().Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperrors.ValidationError("skip must be a non-negative integer")
		}
		opts.Offset = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, apperrors.ValidationError("limit must be a positive integer")
		}
		opts.Limit = n
	}
	if opts.Category != "" && !db.IsValidCategory(opts.Category) {
		return opts, apperrors.ValidationError("invalid item category")
	}

	return opts, nil
}

func validateItemRequest(req *ItemRequest) error {
	if req.Name == "" {
		return apperrors.ValidationError("item name is required")
	}
	if len(req.Name) > 200 {
		return apperrors.ValidationError("item name must be at most 200 characters")
	}
	if !db.IsValidCategory(req.Category) {
		return apperrors.ValidationError("invalid item category")
	}
	if req.Price != nil && *req.Price < 0 {
		return apperrors.ValidationError("price must not be negative")
	}
	return nil
}

func itemIDFrom(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("item_id"))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid item id")
	}
	return id, nil
}

func itemError(err error) error {
	if errors.Is(err, db.ErrItemNotFound) {
		return apperrors.ItemNotFound()
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.DatabaseError("wardrobe operation failed").WithCause(err)
}

func readUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(validators.MaxImageSize + 1); err != nil {
		return nil, apperrors.BadRequest("invalid multipart form")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, apperrors.BadRequest("image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, validators.MaxImageSize+1))
	if err != nil {
		return nil, apperrors.BadRequest("failed to read uploaded file")
	}
	return data, nil
}

func toItemResponse(item *db.Item) ItemResponse {
	tags := make([]string, 0, len(item.Tags))
	for _, tag := range item.Tags {
		tags = append(tags, tag.Name)
	}

	colors := item.Colors
	if colors == nil {
		colors = []string{}
	}

	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Colors:      colors,
		Brand:       item.Brand,
		Category:    item.Category,
		IsFavorite:  item.IsFavorite,
		Price:       item.Price,
		Notes:       item.Notes,
		Size:        item.Size,
		ImageURL:    item.ImageURL,
		CreatedAt:   item.CreatedAt,
		Tags:        tags,
	}
}
