package users

import (
	"github.com/stylevault/backend/internal/db"
)

// Profile payload types, used both for PUT /users/me/profile requests
// and for rendering the profile back in responses.

type MeasurementsPayload struct {
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
	BodyType string  `json:"body_type,omitempty"`
}

type BudgetPayload struct {
	MinAmount float64 `json:"min_amount"`
	MaxAmount float64 `json:"max_amount"`
}

type ShoppingHabitsPayload struct {
	Frequency          string   `json:"frequency"`
	PreferredRetailers []string `json:"preferred_retailers"`
}

type StylePreferencesPayload struct {
	FavoriteColors   []string               `json:"favorite_colors"`
	PreferredBrands  []string               `json:"preferred_brands"`
	LifestyleChoices []string               `json:"lifestyle_choices"`
	Budget           *BudgetPayload         `json:"budget,omitempty"`
	ShoppingHabits   *ShoppingHabitsPayload `json:"shopping_habits,omitempty"`
}

type UserDetailsPayload struct {
	Name             string                   `json:"name"`
	Age              int                      `json:"age"`
	Gender           string                   `json:"gender,omitempty"`
	LocationLong     string                   `json:"location_long,omitempty"`
	LocationLat      string                   `json:"location_lat,omitempty"`
	BodyMeasurements *MeasurementsPayload     `json:"body_measurements,omitempty"`
	StylePreferences *StylePreferencesPayload `json:"style_preferences,omitempty"`
}

type UserPreferencesPayload struct {
	ReceiveNotifications bool `json:"receive_notifications"`
	AllowDataSharing     bool `json:"allow_data_sharing"`
}

type ProfileUpdateRequest struct {
	UserDetails     *UserDetailsPayload     `json:"user_details,omitempty"`
	UserPreferences *UserPreferencesPayload `json:"user_preferences,omitempty"`
}

// ProfileResponse is the profile section of a user response.
type ProfileResponse struct {
	UserDetails     *UserDetailsPayload     `json:"user_details,omitempty"`
	UserPreferences *UserPreferencesPayload `json:"user_preferences,omitempty"`
}

func (r *ProfileUpdateRequest) toProfile() *db.Profile {
	profile := &db.Profile{}

	if d := r.UserDetails; d != nil {
		details := &db.UserDetails{
			Name:         d.Name,
			Age:          d.Age,
			Gender:       d.Gender,
			LocationLong: d.LocationLong,
			LocationLat:  d.LocationLat,
		}
		if m := d.BodyMeasurements; m != nil {
			details.BodyMeasurements = &db.BodyMeasurements{
				Height:   m.Height,
				Weight:   m.Weight,
				BodyType: m.BodyType,
			}
		}
		if sp := d.StylePreferences; sp != nil {
			prefs := &db.StylePreferences{
				FavoriteColors:   sp.FavoriteColors,
				PreferredBrands:  sp.PreferredBrands,
				LifestyleChoices: sp.LifestyleChoices,
			}
			if b := sp.Budget; b != nil {
				prefs.Budget = &db.Budget{MinAmount: b.MinAmount, MaxAmount: b.MaxAmount}
			}
			if sh := sp.ShoppingHabits; sh != nil {
				prefs.ShoppingHabits = &db.ShoppingHabits{
					Frequency:          sh.Frequency,
					PreferredRetailers: sh.PreferredRetailers,
				}
			}
			details.StylePreferences = prefs
		}
		profile.Details = details
	}

	if p := r.UserPreferences; p != nil {
		profile.Preferences = &db.UserPreferences{
			ReceiveNotifications: p.ReceiveNotifications,
			AllowDataSharing:     p.AllowDataSharing,
		}
	}

	return profile
}

func toProfileResponse(profile *db.Profile) *ProfileResponse {
	if profile == nil || (profile.Details == nil && profile.Preferences == nil) {
		return nil
	}

	resp := &ProfileResponse{}

	if d := profile.Details; d != nil {
		details := &UserDetailsPayload{
			Name:         d.Name,
			Age:          d.Age,
			Gender:       d.Gender,
			LocationLong: d.LocationLong,
			LocationLat:  d.LocationLat,
		}
		if m := d.BodyMeasurements; m != nil {
			details.BodyMeasurements = &MeasurementsPayload{
				Height:   m.Height,
				Weight:   m.Weight,
				BodyType: m.BodyType,
			}
		}
		if sp := d.StylePreferences; sp != nil {
			prefs := &StylePreferencesPayload{
				FavoriteColors:   sp.FavoriteColors,
				PreferredBrands:  sp.PreferredBrands,
				LifestyleChoices: sp.LifestyleChoices,
			}
			if b := sp.Budget; b != nil {
				prefs.Budget = &BudgetPayload{MinAmount: b.MinAmount, MaxAmount: b.MaxAmount}
			}
			if sh := sp.ShoppingHabits; sh != nil {
				prefs.ShoppingHabits = &ShoppingHabitsPayload{
					Frequency:          sh.Frequency,
					PreferredRetailers: sh.PreferredRetailers,
				}
			}
			details.StylePreferences = prefs
		}
		resp.UserDetails = details
	}

	if p := profile.Preferences; p != nil {
		resp.UserPreferences = &UserPreferencesPayload{
			ReceiveNotifications: p.ReceiveNotifications,
			AllowDataSharing:     p.AllowDataSharing,
		}
	}

	return resp
}
