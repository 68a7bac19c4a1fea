package session

import (
	"context"
	"time"

	"github.com/nhle/homesync/internal/debounce"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/store"
)

const localWriteTimeout = 5 * time.Second

// watchStore follows writes made to the local store by other processes
// of the same user. A household selected elsewhere becomes active here.
func (s *Session) watchStore(changes <-chan store.Change) {
	defer s.wg.Done()
	for ch := range changes {
		if ch.Key != store.KeyActiveHousehold {
			continue
		}
		id := ch.Value
		if ch.Removed {
			id = ""
		}
		if id != "" && !s.Stores.Households.State().Contains(id) {
			s.log.Debug().Str("household", id).Msg("ignoring selection of unknown household")
			continue
		}
		s.applySelection(id)
	}
}

// SaveDraft stores the unsent chat input of a household. Writes are
// debounced; the latest text wins.
func (s *Session) SaveDraft(householdID, text string) {
	if householdID == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	d, ok := s.drafts[householdID]
	if !ok {
		d = debounce.New(s.draftDelay())
		s.drafts[householdID] = d
	}
	s.mu.Unlock()

	d.Call(func() { s.writeDraft(householdID, text) })
}

// Draft returns the stored chat input of a household.
func (s *Session) Draft(ctx context.Context, householdID string) (string, error) {
	s.flushDraft(householdID)
	text, _, err := s.deps.KV.Get(ctx, store.DraftKey(householdID))
	return text, err
}

func (s *Session) flushDraft(householdID string) {
	s.mu.Lock()
	d := s.drafts[householdID]
	s.mu.Unlock()
	if d != nil {
		d.Flush()
	}
}

func (s *Session) writeDraft(householdID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), localWriteTimeout)
	defer cancel()

	var err error
	if text == "" {
		err = s.deps.KV.Remove(ctx, store.DraftKey(householdID))
	} else {
		err = s.deps.KV.Set(ctx, store.DraftKey(householdID), text)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("household", householdID).Msg("saving draft")
	}
}

func (s *Session) draftDelay() time.Duration {
	if ms := s.deps.Sync.DraftDebounceMs; ms > 0 {
		return model.Millis(ms)
	}
	return 500 * time.Millisecond
}

// Preferences returns the stored display preferences, or def.
func (s *Session) Preferences(ctx context.Context, def model.Preferences) (model.Preferences, error) {
	return store.LoadPreferences(ctx, s.deps.KV, def)
}

// SetPreferences stores display preferences.
func (s *Session) SetPreferences(ctx context.Context, prefs model.Preferences) error {
	return store.SavePreferences(ctx, s.deps.KV, prefs)
}
