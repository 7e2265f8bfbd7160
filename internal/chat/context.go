package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/stylevault/backend/internal/db"
)

// ContextOptions selects which parts of a user's data get baked into a
// new session's stylist context.
type ContextOptions struct {
	IncludeWardrobe         bool        `json:"include_wardrobe"`
	IncludeMeasurements     bool        `json:"include_measurements"`
	IncludeStylePreferences bool        `json:"include_style_preferences"`
	IncludeShoppingHabits   bool        `json:"include_shopping_habits"`
	SpecificItems           []uuid.UUID `json:"specific_items,omitempty"`
}

// ContextItem is the snapshot of a wardrobe item carried in a session.
type ContextItem struct {
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Size        string   `json:"size,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	IsFavorite  bool     `json:"is_favorite"`
	Price       *float64 `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Measurements is the body measurement snapshot carried in a session.
type Measurements struct {
	Height   float64 `json:"height,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	BodyType string  `json:"body_type,omitempty"`
}

// BudgetRange is the spending range carried in a session.
type BudgetRange struct {
	MinAmount float64 `json:"min_amount"`
	MaxAmount float64 `json:"max_amount"`
}

// StylePrefs is the style preference snapshot carried in a session.
type StylePrefs struct {
	FavoriteColors   []string     `json:"favorite_colors,omitempty"`
	PreferredBrands  []string     `json:"preferred_brands,omitempty"`
	LifestyleChoices []string     `json:"lifestyle_choices,omitempty"`
	Budget           *BudgetRange `json:"budget,omitempty"`
}

// Habits is the shopping habit snapshot carried in a session.
type Habits struct {
	Frequency          string   `json:"frequency,omitempty"`
	PreferredRetailers []string `json:"preferred_retailers,omitempty"`
}

// UserContext is the data snapshot a session was created with. It is
// stored on the session so later messages see the same context the
// session started with.
type UserContext struct {
	WardrobeItems    []ContextItem `json:"wardrobe_items,omitempty"`
	Measurements     *Measurements `json:"body_measurements,omitempty"`
	StylePreferences *StylePrefs   `json:"style_preferences,omitempty"`
	ShoppingHabits   *Habits       `json:"shopping_habits,omitempty"`
}

// Empty reports whether no context data was collected.
func (c *UserContext) Empty() bool {
	return len(c.WardrobeItems) == 0 && c.Measurements == nil &&
		c.StylePreferences == nil && c.ShoppingHabits == nil
}

type itemSource interface {
	ListByUser(ctx context.Context, userID uuid.UUID, opts db.ItemListOptions) ([]*db.Item, error)
	GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*db.Item, error)
}

type profileSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
}

// ContextBuilder assembles a UserContext from the relational store.
type ContextBuilder struct {
	items    itemSource
	profiles profileSource
}

func NewContextBuilder(items itemSource, profiles profileSource) *ContextBuilder {
	return &ContextBuilder{items: items, profiles: profiles}
}

// Build collects the requested context slices for a user. Requesting
// nothing yields an empty context, which is valid: the session then
// runs on the base stylist prompt alone.
func (b *ContextBuilder) Build(ctx context.Context, userID uuid.UUID, opts ContextOptions) (*UserContext, error) {
	uc := &UserContext{}

	if opts.IncludeWardrobe {
		var items []*db.Item
		var err error
		if len(opts.SpecificItems) > 0 {
			items, err = b.items.GetByIDs(ctx, userID, opts.SpecificItems)
		} else {
			items, err = b.items.ListByUser(ctx, userID, db.ItemListOptions{})
		}
		if err != nil {
			return nil, fmt.Errorf("loading wardrobe context: %w", err)
		}
		for _, item := range items {
			uc.WardrobeItems = append(uc.WardrobeItems, toContextItem(item))
		}
	}

	if opts.IncludeMeasurements || opts.IncludeStylePreferences || opts.IncludeShoppingHabits {
		profile, err := b.profiles.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("loading profile context: %w", err)
		}
		if profile != nil && profile.Details != nil {
			if m := profile.Details.BodyMeasurements; m != nil && opts.IncludeMeasurements {
				uc.Measurements = &Measurements{
					Height:   m.Height,
					Weight:   m.Weight,
					BodyType: m.BodyType,
				}
			}
			if sp := profile.Details.StylePreferences; sp != nil {
				if opts.IncludeStylePreferences {
					prefs := &StylePrefs{
						FavoriteColors:   sp.FavoriteColors,
						PreferredBrands:  sp.PreferredBrands,
						LifestyleChoices: sp.LifestyleChoices,
					}
					if sp.Budget != nil {
						prefs.Budget = &BudgetRange{
							MinAmount: sp.Budget.MinAmount,
							MaxAmount: sp.Budget.MaxAmount,
						}
					}
					uc.StylePreferences = prefs
				}
				if sh := sp.ShoppingHabits; sh != nil && opts.IncludeShoppingHabits {
					uc.ShoppingHabits = &Habits{
						Frequency:          sh.Frequency,
						PreferredRetailers: sh.PreferredRetailers,
					}
				}
			}
		}
	}

	return uc, nil
}

func toContextItem(item *db.Item) ContextItem {
	ci := ContextItem{
		Name:        item.Name,
		Category:    item.Category,
		Brand:       item.Brand,
		Colors:      item.Colors,
		Size:        item.Size,
		Notes:       item.Notes,
		IsFavorite:  item.IsFavorite,
		Price:       item.Price,
		Description: item.Description,
	}
	for _, tag := range item.Tags {
		ci.Tags = append(ci.Tags, tag.Name)
	}
	return ci
}

// SystemPrompt renders the context into the session's system message.
func SystemPrompt(uc *UserContext) string {
	lines := []string{"You are a personal fashion stylist assistant."}

	if len(uc.WardrobeItems) > 0 {
		lines = append(lines, fmt.Sprintf("Current Wardrobe: %d items", len(uc.WardrobeItems)))

		if categories := distinct(uc.WardrobeItems, func(i ContextItem) string { return i.Category }); len(categories) > 0 {
			lines = append(lines, "Categories: "+strings.Join(categories, ", "))
		}
		if brands := distinct(uc.WardrobeItems, func(i ContextItem) string { return i.Brand }); len(brands) > 0 {
			lines = append(lines, "Brands: "+strings.Join(brands, ", "))
		}
	}

	if m := uc.Measurements; m != nil {
		var parts []string
		if m.Height > 0 {
			parts = append(parts, fmt.Sprintf("Height: %.0fcm", m.Height))
		}
		if m.Weight > 0 {
			parts = append(parts, fmt.Sprintf("Weight: %.0fkg", m.Weight))
		}
		if m.BodyType != "" {
			parts = append(parts, "Body Type: "+m.BodyType)
		}
		if len(parts) > 0 {
			lines = append(lines, "Body Measurements: "+strings.Join(parts, " | "))
		}
	}

	if sp := uc.StylePreferences; sp != nil {
		var parts []string
		if len(sp.FavoriteColors) > 0 {
			parts = append(parts, "Colors: "+strings.Join(sp.FavoriteColors, ", "))
		}
		if len(sp.PreferredBrands) > 0 {
			parts = append(parts, "Brands: "+strings.Join(sp.PreferredBrands, ", "))
		}
		if len(sp.LifestyleChoices) > 0 {
			parts = append(parts, "Lifestyle: "+strings.Join(sp.LifestyleChoices, ", "))
		}
		if sp.Budget != nil {
			parts = append(parts, fmt.Sprintf("Budget Range: $%.0f - $%.0f", sp.Budget.MinAmount, sp.Budget.MaxAmount))
		}
		if len(parts) > 0 {
			lines = append(lines, "Style Preferences: "+strings.Join(parts, " | "))
		}
	}

	if sh := uc.ShoppingHabits; sh != nil {
		if sh.Frequency != "" {
			lines = append(lines, "Shopping Frequency: "+sh.Frequency)
		}
		if len(sh.PreferredRetailers) > 0 {
			lines = append(lines, "Preferred Retailers: "+strings.Join(sh.PreferredRetailers, ", "))
		}
	}

	return strings.Join(lines, "\n")
}

// distinct collects the sorted set of non-empty values of one item
// field.
func distinct(items []ContextItem, field func(ContextItem) string) []string {
	seen := make(map[string]bool)
	for _, item := range items {
		if v := field(item); v != "" {
			seen[v] = true
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
