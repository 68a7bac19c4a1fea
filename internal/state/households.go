package state

import "github.com/nhle/homesync/internal/model"

// HouseholdState tracks the user's households and the single active one.
// ActiveID is either empty or the ID of an entry in Households.
type HouseholdState struct {
	Households []model.Household
	ActiveID   string
	Members    map[string][]model.Member
	Loaded     bool
}

// HouseholdAction is the closed set of household transitions.
type HouseholdAction interface {
	householdAction()
}

// SetHouseholds replaces the household set. The active selection is
// cleared when it no longer belongs to the set.
type SetHouseholds struct {
	Households []model.Household
}

// AddHousehold inserts a household unless its ID is already present.
type AddHousehold struct {
	Household model.Household
}

// RemoveHousehold drops a household (e.g., after leaving it).
type RemoveHousehold struct {
	ID string
}

// SelectHousehold makes a household active. Selecting an ID outside the
// household set is ignored; an empty ID clears the selection.
type SelectHousehold struct {
	ID string
}

// SetMembers records the member list of one household.
type SetMembers struct {
	HouseholdID string
	Members     []model.Member
}

func (SetHouseholds) householdAction()   {}
func (AddHousehold) householdAction()    {}
func (RemoveHousehold) householdAction() {}
func (SelectHousehold) householdAction() {}
func (SetMembers) householdAction()      {}

// ReduceHouseholds is the household reducer.
func ReduceHouseholds(s HouseholdState, a HouseholdAction) HouseholdState {
	switch a := a.(type) {
	case SetHouseholds:
		s.Households = append([]model.Household(nil), a.Households...)
		s.Loaded = true
		if !s.Contains(s.ActiveID) {
			s.ActiveID = ""
		}
		return s

	case AddHousehold:
		if s.Contains(a.Household.ID) {
			return s
		}
		s.Households = append(append([]model.Household(nil), s.Households...), a.Household)
		return s

	case RemoveHousehold:
		if !s.Contains(a.ID) {
			return s
		}
		households := make([]model.Household, 0, len(s.Households))
		for _, h := range s.Households {
			if h.ID != a.ID {
				households = append(households, h)
			}
		}
		s.Households = households
		if s.ActiveID == a.ID {
			s.ActiveID = ""
		}
		if _, ok := s.Members[a.ID]; ok {
			s.Members = cloneMembers(s.Members)
			delete(s.Members, a.ID)
		}
		return s

	case SelectHousehold:
		if a.ID != "" && !s.Contains(a.ID) {
			return s
		}
		s.ActiveID = a.ID
		return s

	case SetMembers:
		s.Members = cloneMembers(s.Members)
		s.Members[a.HouseholdID] = append([]model.Member(nil), a.Members...)
		return s
	}

	return s
}

// Contains reports whether id names one of the user's households.
func (s HouseholdState) Contains(id string) bool {
	if id == "" {
		return false
	}
	for _, h := range s.Households {
		if h.ID == id {
			return true
		}
	}
	return false
}

// Active returns the active household, if any.
func (s HouseholdState) Active() (model.Household, bool) {
	for _, h := range s.Households {
		if h.ID == s.ActiveID {
			return h, true
		}
	}
	return model.Household{}, false
}

func cloneMembers(in map[string][]model.Member) map[string][]model.Member {
	out := make(map[string][]model.Member, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
