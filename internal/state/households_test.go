package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/homesync/internal/model"
)

func households(ids ...string) []model.Household {
	out := make([]model.Household, len(ids))
	for i, id := range ids {
		out[i] = model.Household{ID: id, Name: "house " + id}
	}
	return out
}

func TestSelectHouseholdRequiresMembership(t *testing.T) {
	s := ReduceHouseholds(HouseholdState{}, SetHouseholds{Households: households("a", "b")})

	s = ReduceHouseholds(s, SelectHousehold{ID: "b"})
	assert.Equal(t, "b", s.ActiveID)

	s = ReduceHouseholds(s, SelectHousehold{ID: "zzz"})
	assert.Equal(t, "b", s.ActiveID, "unknown household is ignored")

	s = ReduceHouseholds(s, SelectHousehold{ID: ""})
	assert.Empty(t, s.ActiveID)
}

func TestSetHouseholdsClearsStaleSelection(t *testing.T) {
	s := ReduceHouseholds(HouseholdState{}, SetHouseholds{Households: households("a", "b")})
	s = ReduceHouseholds(s, SelectHousehold{ID: "a"})

	s = ReduceHouseholds(s, SetHouseholds{Households: households("b")})
	assert.Empty(t, s.ActiveID)
	assert.True(t, s.Loaded)
}

func TestRemoveActiveHouseholdClearsSelection(t *testing.T) {
	s := ReduceHouseholds(HouseholdState{}, SetHouseholds{Households: households("a", "b")})
	s = ReduceHouseholds(s, SelectHousehold{ID: "a"})
	s = ReduceHouseholds(s, SetMembers{HouseholdID: "a", Members: []model.Member{{UserID: "u1"}}})

	s = ReduceHouseholds(s, RemoveHousehold{ID: "a"})
	assert.Empty(t, s.ActiveID)
	assert.False(t, s.Contains("a"))
	assert.NotContains(t, s.Members, "a")

	_, ok := s.Active()
	assert.False(t, ok)
}

func TestAddHouseholdDeduplicates(t *testing.T) {
	s := ReduceHouseholds(HouseholdState{}, AddHousehold{Household: model.Household{ID: "a"}})
	s = ReduceHouseholds(s, AddHousehold{Household: model.Household{ID: "a"}})
	assert.Len(t, s.Households, 1)
}

func TestAuthReducer(t *testing.T) {
	s := ReduceAuth(AuthState{}, LoggedIn{User: model.User{ID: "u1"}})
	assert.Equal(t, AuthAuthenticated, s.Status)
	assert.Equal(t, "u1", s.User.ID)

	s = ReduceAuth(s, SessionExpired{})
	assert.Equal(t, AuthExpired, s.Status)
	assert.NotNil(t, s.User)

	s = ReduceAuth(s, LoggedOut{})
	assert.Equal(t, AuthAnonymous, s.Status)
	assert.Nil(t, s.User)
	assert.Equal(t, "anonymous", s.Status.String())
}
