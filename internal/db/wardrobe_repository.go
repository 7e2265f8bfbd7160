package db

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ErrItemNotFound = errors.New("item not found")
var ErrInvalidCategory = errors.New("invalid category")

// Categories a wardrobe item can belong to.
const (
	CategoryTop         = "TOP"
	CategoryBottom      = "BOTTOM"
	CategoryShoes       = "SHOES"
	CategoryAccessories = "ACCESSORIES"
	CategoryInnerwear   = "INNERWEAR"
	CategoryOther       = "OTHER"
)

var validCategories = map[string]bool{
	CategoryTop:         true,
	CategoryBottom:      true,
	CategoryShoes:       true,
	CategoryAccessories: true,
	CategoryInnerwear:   true,
	CategoryOther:       true,
}

// IsValidCategory reports whether s is a known item category.
func IsValidCategory(s string) bool {
	return validCategories[s]
}

type Tag struct {
	ID   uuid.UUID
	Name string
}

type Item struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
	Colors      []string
	Brand       string
	Category    string
	IsFavorite  bool
	Price       *float64
	Notes       string
	Size        string
	ImageURL    string
	IsDeleted   bool
	CreatedAt   time.Time
	Tags        []Tag
}

// ItemListOptions filters and pages item listings.
type ItemListOptions struct {
	Limit    int
	Offset   int
	Search   string
	Category string
}

type WardrobeRepository struct {
	db *DB
}

func NewWardrobeRepository(db *DB) *WardrobeRepository {
	return &WardrobeRepository{db: db}
}

// Create inserts an item and attaches its tags, creating unknown tag
// names on the fly.
func (r *WardrobeRepository) Create(ctx context.Context, item *Item, tagNames []string) error {
	if !IsValidCategory(item.Category) {
		return ErrInvalidCategory
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO items (id, user_id, name, description, colors, brand, category, is_favorite, price, notes, size, is_deleted)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), FALSE)
		RETURNING created_at
	`

	err = tx.QueryRowContext(ctx, query,
		item.ID, item.UserID, item.Name, item.Description, pq.Array(item.Colors),
		item.Brand, item.Category, item.IsFavorite, item.Price, item.Notes, item.Size,
	).Scan(&item.CreatedAt)
	if err != nil {
		return err
	}

	tags, err := r.attachTags(ctx, tx, item.ID, tagNames)
	if err != nil {
		return err
	}
	item.Tags = tags

	return tx.Commit()
}

// GetByID returns a non-deleted item owned by the given user.
func (r *WardrobeRepository) GetByID(ctx context.Context, userID, itemID uuid.UUID) (*Item, error) {
	query := itemSelect + ` WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`

	item, err := r.scanItem(r.db.QueryRowContext(ctx, query, itemID, userID))
	if err != nil {
		return nil, err
	}

	if err := r.loadTags(ctx, []*Item{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// ListByUser returns the user's non-deleted items, newest first. A
// search term matches item names case- and accent-insensitively.
func (r *WardrobeRepository) ListByUser(ctx context.Context, userID uuid.UUID, opts ItemListOptions) ([]*Item, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := itemSelect + ` WHERE user_id = $1 AND is_deleted = FALSE`
	args := []any{userID}

	if opts.Category != "" {
		args = append(args, opts.Category)
		query += ` AND category = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	// Accent folding is not expressible in plain SQL, so a search
	// fetches the user's rows and filters and pages in Go with the
	// same transform applied to both sides. Without a search term the
	// database pages as usual.
	searching := opts.Search != ""
	if !searching {
		args = append(args, opts.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		args = append(args, opts.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := r.scanItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if searching {
		items = pageItems(filterByName(items, opts.Search), opts.Offset, opts.Limit)
	}

	if err := r.loadTags(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// filterByName keeps items whose name contains the search term after
// both sides are lowercased and accent-stripped.
func filterByName(items []*Item, search string) []*Item {
	term := normalizeSearch(search)
	var matched []*Item
	for _, item := range items {
		if strings.Contains(normalizeSearch(item.Name), term) {
			matched = append(matched, item)
		}
	}
	return matched
}

func pageItems(items []*Item, offset, limit int) []*Item {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// GetByIDs returns the subset of the given items that exist, belong to
// the user and are not deleted.
func (r *WardrobeRepository) GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := itemSelect + ` WHERE user_id = $1 AND is_deleted = FALSE AND id = ANY($2)`

	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := r.scanItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadTags(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Update overwrites the mutable fields of an item and replaces its tag
// set.
func (r *WardrobeRepository) Update(ctx context.Context, item *Item, tagNames []string) error {
	if !IsValidCategory(item.Category) {
		return ErrInvalidCategory
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE items
		SET name = $3, description = NULLIF($4, ''), colors = $5, brand = NULLIF($6, ''),
		    category = $7, is_favorite = $8, price = $9, notes = NULLIF($10, ''), size = NULLIF($11, '')
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`

	result, err := tx.ExecContext(ctx, query,
		item.ID, item.UserID, item.Name, item.Description, pq.Array(item.Colors),
		item.Brand, item.Category, item.IsFavorite, item.Price, item.Notes, item.Size,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrItemNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = $1`, item.ID); err != nil {
		return err
	}

	tags, err := r.attachTags(ctx, tx, item.ID, tagNames)
	if err != nil {
		return err
	}
	item.Tags = tags

	return tx.Commit()
}

// SoftDelete marks an item deleted without removing the row.
func (r *WardrobeRepository) SoftDelete(ctx context.Context, userID, itemID uuid.UUID) error {
	query := `
		UPDATE items
		SET is_deleted = TRUE
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, itemID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

// SetImageURL stores the object-storage URL of the item's image.
func (r *WardrobeRepository) SetImageURL(ctx context.Context, userID, itemID uuid.UUID, imageURL string) error {
	query := `
		UPDATE items
		SET image_url = $3
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, itemID, userID, imageURL)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

const itemSelect = `
	SELECT id, user_id, name, description, colors, brand, category, is_favorite, price, notes, size, image_url, is_deleted, created_at
	FROM items`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WardrobeRepository) scanItem(row *sql.Row) (*Item, error) {
	item, err := scanItemFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *WardrobeRepository) scanItemRows(rows *sql.Rows) (*Item, error) {
	return scanItemFrom(rows)
}

func scanItemFrom(s rowScanner) (*Item, error) {
	item := &Item{}
	var description, brand, notes, size, imageURL sql.NullString
	var price sql.NullFloat64

	err := s.Scan(
		&item.ID, &item.UserID, &item.Name, &description, pq.Array(&item.Colors),
		&brand, &item.Category, &item.IsFavorite, &price, &notes, &size, &imageURL,
		&item.IsDeleted, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.Brand = brand.String
	item.Notes = notes.String
	item.Size = size.String
	item.ImageURL = imageURL.String
	if price.Valid {
		item.Price = &price.Float64
	}

	return item, nil
}

// attachTags resolves tag names to rows, creating missing ones, and
// links them to the item.
func (r *WardrobeRepository) attachTags(ctx context.Context, tx *sql.Tx, itemID uuid.UUID, tagNames []string) ([]Tag, error) {
	tags := make([]Tag, 0, len(tagNames))
	seen := make(map[string]bool, len(tagNames))

	for _, name := range tagNames {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var tag Tag
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (id, name)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name
		`, uuid.New(), name).Scan(&tag.ID, &tag.Name)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO item_tags (item_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, itemID, tag.ID)
		if err != nil {
			return nil, err
		}

		tags = append(tags, tag)
	}

	return tags, nil
}

func (r *WardrobeRepository) loadTags(ctx context.Context, items []*Item) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(items))
	byID := make(map[uuid.UUID]*Item, len(items))
	for i, item := range items {
		ids[i] = item.ID
		byID[item.ID] = item
		item.Tags = []Tag{}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT it.item_id, t.id, t.name
		FROM item_tags it
		JOIN tags t ON t.id = it.tag_id
		WHERE it.item_id = ANY($1)
		ORDER BY t.name
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var itemID uuid.UUID
		var tag Tag
		if err := rows.Scan(&itemID, &tag.ID, &tag.Name); err != nil {
			return err
		}
		if item, ok := byID[itemID]; ok {
			item.Tags = append(item.Tags, tag)
		}
	}
	return rows.Err()
}

// normalizeSearch lowercases a search term and strips combining marks
// so "Réal" matches "real".
func normalizeSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
