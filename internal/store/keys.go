package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/homesync/internal/model"
)

// Well-known keys.
const (
	KeyActiveHousehold = "active_household"
	KeyPreferences     = "preferences"
	draftPrefix        = "draft:"
)

// DraftKey is the key of the chat draft of a household.
func DraftKey(householdID string) string {
	return draftPrefix + householdID
}

// DraftHousehold returns the household of a draft key.
func DraftHousehold(key string) (string, bool) {
	return strings.CutPrefix(key, draftPrefix)
}

// ActiveHousehold returns the persisted active household ID, or "" when
// none is selected.
func ActiveHousehold(ctx context.Context, kv KV) (string, error) {
	id, _, err := kv.Get(ctx, KeyActiveHousehold)
	return id, err
}

// SetActiveHousehold persists the active household. An empty id clears it.
func SetActiveHousehold(ctx context.Context, kv KV, id string) error {
	if id == "" {
		return kv.Remove(ctx, KeyActiveHousehold)
	}
	return kv.Set(ctx, KeyActiveHousehold, id)
}

// LoadPreferences returns the stored preferences, or def when none are
// stored.
func LoadPreferences(ctx context.Context, kv KV, def model.Preferences) (model.Preferences, error) {
	raw, ok, err := kv.Get(ctx, KeyPreferences)
	if err != nil || !ok {
		return def, err
	}
	prefs := def
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return def, fmt.Errorf("decoding preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences stores prefs.
func SavePreferences(ctx context.Context, kv KV, prefs model.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	return kv.Set(ctx, KeyPreferences, string(data))
}
