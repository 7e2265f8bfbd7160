package wardrobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylevault/backend/internal/auth"
	"github.com/stylevault/backend/internal/db"
	apperrors "github.com/stylevault/backend/internal/errors"
)

const testMediaURL = "http://localhost:9000/wardrobe-images"

type fakeItemStore struct {
	items      map[uuid.UUID]*db.Item
	failSetURL bool
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[uuid.UUID]*db.Item)}
}

func (f *fakeItemStore) Create(_ context.Context, item *db.Item, tagNames []string) error {
	if !db.IsValidCategory(item.Category) {
		return db.ErrInvalidCategory
	}
	item.CreatedAt = time.Now()
	item.Tags = tagsFromNames(tagNames)
	stored := *item
	f.items[item.ID] = &stored
	return nil
}

func (f *fakeItemStore) GetByID(_ context.Context, userID, itemID uuid.UUID) (*db.Item, error) {
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID || item.IsDeleted {
		return nil, db.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeItemStore) ListByUser(_ context.Context, userID uuid.UUID, opts db.ItemListOptions) ([]*db.Item, error) {
	var items []*db.Item
	for _, item := range f.items {
		if item.UserID != userID || item.IsDeleted {
			continue
		}
		if opts.Category != "" && item.Category != opts.Category {
			continue
		}
		if opts.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(opts.Search)) {
			continue
		}
		copied := *item
		items = append(items, &copied)
	}
	return items, nil
}

func (f *fakeItemStore) Update(_ context.Context, item *db.Item, tagNames []string) error {
	if !db.IsValidCategory(item.Category) {
		return db.ErrInvalidCategory
	}
	existing, ok := f.items[item.ID]
	if !ok || existing.UserID != item.UserID || existing.IsDeleted {
		return db.ErrItemNotFound
	}
	item.CreatedAt = existing.CreatedAt
	item.ImageURL = existing.ImageURL
	item.Tags = tagsFromNames(tagNames)
	stored := *item
	f.items[item.ID] = &stored
	return nil
}

func (f *fakeItemStore) SoftDelete(_ context.Context, userID, itemID uuid.UUID) error {
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID || item.IsDeleted {
		return db.ErrItemNotFound
	}
	item.IsDeleted = true
	return nil
}

func (f *fakeItemStore) SetImageURL(_ context.Context, userID, itemID uuid.UUID, imageURL string) error {
	if f.failSetURL {
		return errors.New("db down")
	}
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID || item.IsDeleted {
		return db.ErrItemNotFound
	}
	item.ImageURL = imageURL
	return nil
}

func tagsFromNames(names []string) []db.Tag {
	tags := make([]db.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, db.Tag{ID: uuid.New(), Name: name})
	}
	return tags
}

type fakeObjectStore struct {
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if f.failPut {
		return errors.New("storage down")
	}
	data, _ := io.ReadAll(reader)
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) Ping(context.Context) error { return nil }

func (f *fakeObjectStore) URL(key string) string {
	return testMediaURL + "/" + key
}

func testUser() *db.User {
	return &db.User{
		ID:        uuid.New(),
		Email:     "ana@example.com",
		Username:  "ana",
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

func doAuthed(h apperrors.Handler, user *db.User, method, target, contentType string, body io.Reader, itemID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if itemID != "" {
		req.SetPathValue("item_id", itemID)
	}
	req = req.WithContext(auth.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	apperrors.HandleFunc(h)(rec, req)
	return rec
}

func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "item.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func createItem(t *testing.T, store *fakeItemStore, user *db.User, name, category string) *db.Item {
	t.Helper()
	item := &db.Item{
		ID:       uuid.New(),
		UserID:   user.ID,
		Name:     name,
		Category: category,
		Colors:   []string{"black"},
	}
	require.NoError(t, store.Create(context.Background(), item, nil))
	return item
}

func TestCreateItem(t *testing.T) {
	store := newFakeItemStore()
	h := NewHandlers(store, newFakeObjectStore(), testMediaURL)
	user := testUser()

	body := `{
		"name": "Wool Overcoat",
		"description": "Charcoal, single-breasted",
		"colors": ["grey"],
		"brand": "Arket",
		"category": "TOP",
		"is_favorite": true,
		"price": 250.0,
		"size": "M",
		"tags": ["winter", "formal"]
	}`

	rec := doAuthed(h.Create, user, http.MethodPost, "/api/v1/wardrobe/items", "application/json", strings.NewReader(body), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Wool Overcoat", resp.Name)
	assert.Equal(t, "TOP", resp.Category)
	assert.Equal(t, []string{"winter", "formal"}, resp.Tags)
	require.NotNil(t, resp.Price)
	assert.Equal(t, 250.0, *resp.Price)

	stored, err := store.GetByID(context.Background(), user.ID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arket", stored.Brand)
}

func TestCreateItemValidation(t *testing.T) {
	h := NewHandlers(newFakeItemStore(), newFakeObjectStore(), testMediaURL)
	user := testUser()

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"category": "TOP"}`},
		{"bad category", `{"name": "Hat", "category": "HEADWEAR"}`},
		{"negative price", `{"name": "Hat", "category": "ACCESSORIES", "price": -5}`},
		{"malformed json", `{"name": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthed(h.Create, user, http.MethodPost, "/api/v1/wardrobe/items", "application/json", strings.NewReader(tt.body), "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListItemsFilters(t *testing.T) {
	store := newFakeItemStore()
	h := NewHandlers(store, newFakeObjectStore(), testMediaURL)
	user := testUser()

	createItem(t, store, user, "Linen Shirt", db.CategoryTop)
	createItem(t, store, user, "Denim Jacket", db.CategoryTop)
	createItem(t, store, user, "Chelsea Boots", db.CategoryShoes)
	other := testUser()
	createItem(t, store, other, "Not Mine", db.CategoryTop)

	rec := doAuthed(h.List, user, http.MethodGet, "/api/v1/wardrobe/items", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	rec = doAuthed(h.List, user, http.MethodGet, "/api/v1/wardrobe/items?category=SHOES", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var shoes []ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shoes))
	require.Len(t, shoes, 1)
	assert.Equal(t, "Chelsea Boots", shoes[0].Name)

	rec = doAuthed(h.List, user, http.MethodGet, "/api/v1/wardrobe/items?search=denim", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var found []ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Denim Jacket", found[0].Name)

	rec = doAuthed(h.List, user, http.MethodGet, "/api/v1/wardrobe/items?category=HEADWEAR", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAuthed(h.List, user, http.MethodGet, "/api/v1/wardrobe/items?skip=oops", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetItem(t *testing.T) {
	store := newFakeItemStore()
	h := NewHandlers(store, newFakeObjectStore(), testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Silk Scarf", db.CategoryAccessories)

	rec := doAuthed(h.Get, user, http.MethodGet, "/api/v1/wardrobe/items/"+item.ID.String(), "", nil, item.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, item.ID, resp.ID)

	rec = doAuthed(h.Get, user, http.MethodGet, "/api/v1/wardrobe/items/"+uuid.NewString(), "", nil, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doAuthed(h.Get, user, http.MethodGet, "/api/v1/wardrobe/items/nope", "", nil, "nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	intruder := testUser()
	rec = doAuthed(h.Get, intruder, http.MethodGet, "/api/v1/wardrobe/items/"+item.ID.String(), "", nil, item.ID.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateItem(t *testing.T) {
	store := newFakeItemStore()
	h := NewHandlers(store, newFakeObjectStore(), testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Plain Tee", db.CategoryTop)

	body := `{"name": "Graphic Tee", "category": "TOP", "colors": ["white"], "tags": ["casual"]}`
	rec := doAuthed(h.Update, user, http.MethodPut, "/api/v1/wardrobe/items/"+item.ID.String(), "application/json", strings.NewReader(body), item.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Graphic Tee", resp.Name)
	assert.Equal(t, []string{"casual"}, resp.Tags)

	rec = doAuthed(h.Update, user, http.MethodPut, "/api/v1/wardrobe/items/"+uuid.NewString(), "application/json", strings.NewReader(body), uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteItem(t *testing.T) {
	store := newFakeItemStore()
	h := NewHandlers(store, newFakeObjectStore(), testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Old Jeans", db.CategoryBottom)

	rec := doAuthed(h.Delete, user, http.MethodDelete, "/api/v1/wardrobe/items/"+item.ID.String(), "", nil, item.ID.String())
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doAuthed(h.Get, user, http.MethodGet, "/api/v1/wardrobe/items/"+item.ID.String(), "", nil, item.ID.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doAuthed(h.Delete, user, http.MethodDelete, "/api/v1/wardrobe/items/"+item.ID.String(), "", nil, item.ID.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadItemImage(t *testing.T) {
	store := newFakeItemStore()
	objects := newFakeObjectStore()
	h := NewHandlers(store, objects, testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Loafers", db.CategoryShoes)

	body, contentType := pngUpload(t)
	rec := doAuthed(h.UploadImage, user, http.MethodPost, "/api/v1/wardrobe/items/"+item.ID.String()+"/image", contentType, body, item.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp["url"], testMediaURL+"/wardrobe-items/"+item.ID.String()+"/"))

	stored, err := store.GetByID(context.Background(), user.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, resp["url"], stored.ImageURL)
	assert.Len(t, objects.objects, 1)
}

func TestUploadItemImageReplacesOld(t *testing.T) {
	store := newFakeItemStore()
	objects := newFakeObjectStore()
	h := NewHandlers(store, objects, testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Loafers", db.CategoryShoes)

	oldKey := "wardrobe-items/" + item.ID.String() + "/1000.png"
	objects.objects[oldKey] = []byte("old")
	require.NoError(t, store.SetImageURL(context.Background(), user.ID, item.ID, testMediaURL+"/"+oldKey))

	body, contentType := pngUpload(t)
	rec := doAuthed(h.UploadImage, user, http.MethodPost, "/api/v1/wardrobe/items/"+item.ID.String()+"/image", contentType, body, item.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, objects.deleted, oldKey)
	assert.Len(t, objects.objects, 1)
}

func TestUploadItemImageRollsBackOnDBError(t *testing.T) {
	store := newFakeItemStore()
	objects := newFakeObjectStore()
	h := NewHandlers(store, objects, testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Loafers", db.CategoryShoes)
	store.failSetURL = true

	body, contentType := pngUpload(t)
	rec := doAuthed(h.UploadImage, user, http.MethodPost, "/api/v1/wardrobe/items/"+item.ID.String()+"/image", contentType, body, item.ID.String())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, objects.objects)
}

func TestUploadItemImageRejections(t *testing.T) {
	store := newFakeItemStore()
	h := NewHandlers(store, newFakeObjectStore(), testMediaURL)
	user := testUser()
	item := createItem(t, store, user, "Loafers", db.CategoryShoes)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("just some text"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := doAuthed(h.UploadImage, user, http.MethodPost, "/api/v1/wardrobe/items/"+item.ID.String()+"/image", writer.FormDataContentType(), &body, item.ID.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	upload, contentType := pngUpload(t)
	rec = doAuthed(h.UploadImage, user, http.MethodPost, "/api/v1/wardrobe/items/"+uuid.NewString()+"/image", contentType, upload, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
