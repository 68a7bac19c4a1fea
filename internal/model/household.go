package model

import "time"

// Household is a group of users sharing tasks, bills and chat.
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a user's membership in a household.
type Member struct {
	UserID      string `json:"user_id"`
	HouseholdID string `json:"household_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
}

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Preferences holds per-user display and accessibility settings
// persisted in the local key-value store.
type Preferences struct {
	Theme         string `json:"theme"`
	HighContrast  bool   `json:"high_contrast"`
	ReducedMotion bool   `json:"reduced_motion"`
}
