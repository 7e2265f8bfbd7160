package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type BodyMeasurements struct {
	Height   float64
	Weight   float64
	BodyType string
}

type Budget struct {
	MinAmount float64
	MaxAmount float64
}

type ShoppingHabits struct {
	Frequency          string
	PreferredRetailers []string
}

type StylePreferences struct {
	FavoriteColors   []string
	PreferredBrands  []string
	LifestyleChoices []string
	Budget           *Budget
	ShoppingHabits   *ShoppingHabits
}

type UserDetails struct {
	Name             string
	Age              int
	Gender           string
	LocationLong     string
	LocationLat      string
	BodyMeasurements *BodyMeasurements
	StylePreferences *StylePreferences
}

type UserPreferences struct {
	ReceiveNotifications bool
	AllowDataSharing     bool
}

// Profile aggregates everything the app knows about a user beyond the
// identity record. Sections the user never filled in are nil.
type Profile struct {
	Details     *UserDetails
	Preferences *UserPreferences
}

type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get loads the full profile tree for a user.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	profile := &Profile{}

	var detailsID uuid.UUID
	details := &UserDetails{}
	var gender, locationLong, locationLat sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, age, gender, location_long, location_lat
		FROM user_details
		WHERE user_id = $1
	`, userID).Scan(&detailsID, &details.Name, &details.Age, &gender, &locationLong, &locationLat)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no details yet, fall through to preferences
	case err != nil:
		return nil, err
	default:
		details.Gender = gender.String
		details.LocationLong = locationLong.String
		details.LocationLat = locationLat.String

		if err := r.loadMeasurements(ctx, detailsID, details); err != nil {
			return nil, err
		}
		if err := r.loadStylePreferences(ctx, detailsID, details); err != nil {
			return nil, err
		}
		profile.Details = details
	}

	prefs := &UserPreferences{}
	err = r.db.QueryRowContext(ctx, `
		SELECT receive_notifications, allow_data_sharing
		FROM user_preferences
		WHERE user_id = $1
	`, userID).Scan(&prefs.ReceiveNotifications, &prefs.AllowDataSharing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		profile.Preferences = prefs
	}

	return profile, nil
}

func (r *ProfileRepository) loadMeasurements(ctx context.Context, detailsID uuid.UUID, details *UserDetails) error {
	m := &BodyMeasurements{}
	var bodyType sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT height, weight, body_type
		FROM body_measurements
		WHERE user_details_id = $1
	`, detailsID).Scan(&m.Height, &m.Weight, &bodyType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	m.BodyType = bodyType.String
	details.BodyMeasurements = m
	return nil
}

func (r *ProfileRepository) loadStylePreferences(ctx context.Context, detailsID uuid.UUID, details *UserDetails) error {
	var prefsID uuid.UUID
	sp := &StylePreferences{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, favorite_colors, preferred_brands, lifestyle_choices
		FROM style_preferences
		WHERE user_details_id = $1
	`, detailsID).Scan(&prefsID, pq.Array(&sp.FavoriteColors), pq.Array(&sp.PreferredBrands), pq.Array(&sp.LifestyleChoices))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	budget := &Budget{}
	err = r.db.QueryRowContext(ctx, `
		SELECT min_amount, max_amount
		FROM budgets
		WHERE style_preferences_id = $1
	`, prefsID).Scan(&budget.MinAmount, &budget.MaxAmount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		sp.Budget = budget
	}

	habits := &ShoppingHabits{}
	err = r.db.QueryRowContext(ctx, `
		SELECT frequency, preferred_retailers
		FROM shopping_habits
		WHERE style_preferences_id = $1
	`, prefsID).Scan(&habits.Frequency, pq.Array(&habits.PreferredRetailers))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		sp.ShoppingHabits = habits
	}

	details.StylePreferences = sp
	return nil
}

// Update upserts the submitted sections of a profile. Sections absent
// from the input are left untouched; existing rows are overwritten.
func (r *ProfileRepository) Update(ctx context.Context, userID uuid.UUID, profile *Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if profile.Details != nil {
		if err := r.upsertDetails(ctx, tx, userID, profile.Details); err != nil {
			return err
		}
	}

	if profile.Preferences != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_preferences (id, user_id, receive_notifications, allow_data_sharing)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET receive_notifications = EXCLUDED.receive_notifications,
			    allow_data_sharing = EXCLUDED.allow_data_sharing
		`, uuid.New(), userID, profile.Preferences.ReceiveNotifications, profile.Preferences.AllowDataSharing)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *ProfileRepository) upsertDetails(ctx context.Context, tx *sql.Tx, userID uuid.UUID, details *UserDetails) error {
	var detailsID uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO user_details (id, user_id, name, age, gender, location_long, location_lat)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
		    age = EXCLUDED.age,
		    gender = EXCLUDED.gender,
		    location_long = EXCLUDED.location_long,
		    location_lat = EXCLUDED.location_lat
		RETURNING id
	`, uuid.New(), userID, details.Name, details.Age, details.Gender, details.LocationLong, details.LocationLat).Scan(&detailsID)
	if err != nil {
		return err
	}

	if details.BodyMeasurements != nil {
		m := details.BodyMeasurements
		_, err := tx.ExecContext(ctx, `
			INSERT INTO body_measurements (id, user_details_id, height, weight, body_type)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))
			ON CONFLICT (user_details_id) DO UPDATE
			SET height = EXCLUDED.height,
			    weight = EXCLUDED.weight,
			    body_type = EXCLUDED.body_type
		`, uuid.New(), detailsID, m.Height, m.Weight, m.BodyType)
		if err != nil {
			return err
		}
	}

	if details.StylePreferences != nil {
		if err := r.upsertStylePreferences(ctx, tx, detailsID, details.StylePreferences); err != nil {
			return err
		}
	}

	return nil
}

func (r *ProfileRepository) upsertStylePreferences(ctx context.Context, tx *sql.Tx, detailsID uuid.UUID, sp *StylePreferences) error {
	var prefsID uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO style_preferences (id, user_details_id, favorite_colors, preferred_brands, lifestyle_choices)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_details_id) DO UPDATE
		SET favorite_colors = EXCLUDED.favorite_colors,
		    preferred_brands = EXCLUDED.preferred_brands,
		    lifestyle_choices = EXCLUDED.lifestyle_choices
		RETURNING id
	`, uuid.New(), detailsID, pq.Array(sp.FavoriteColors), pq.Array(sp.PreferredBrands), pq.Array(sp.LifestyleChoices)).Scan(&prefsID)
	if err != nil {
		return err
	}

	if sp.Budget != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (id, style_preferences_id, min_amount, max_amount)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (style_preferences_id) DO UPDATE
			SET min_amount = EXCLUDED.min_amount,
			    max_amount = EXCLUDED.max_amount
		`, uuid.New(), prefsID, sp.Budget.MinAmount, sp.Budget.MaxAmount)
		if err != nil {
			return err
		}
	}

	if sp.ShoppingHabits != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shopping_habits (id, style_preferences_id, frequency, preferred_retailers)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (style_preferences_id) DO UPDATE
			SET frequency = EXCLUDED.frequency,
			    preferred_retailers = EXCLUDED.preferred_retailers
		`, uuid.New(), prefsID, sp.ShoppingHabits.Frequency, pq.Array(sp.ShoppingHabits.PreferredRetailers))
		if err != nil {
			return err
		}
	}

	return nil
}
