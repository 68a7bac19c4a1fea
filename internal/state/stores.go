package state

// Store aliases for each feature.
type (
	NotificationStore = Store[NotificationState, NotificationAction]
	HouseholdStore    = Store[HouseholdState, HouseholdAction]
	AuthStore         = Store[AuthState, AuthAction]
	MessageStore      = Store[MessageState, MessageAction]
	UIStore           = Store[UIState, UIAction]
)

// Stores bundles the per-feature stores of one session. A new bundle is
// created for every session so no state outlives a logout.
type Stores struct {
	Notifications *NotificationStore
	Households    *HouseholdStore
	Auth          *AuthStore
	Messages      *MessageStore
	UI            *UIStore
}

// NewStores creates empty stores wired to their reducers.
func NewStores() *Stores {
	return &Stores{
		Notifications: NewStore(NotificationState{}, ReduceNotifications),
		Households:    NewStore(HouseholdState{}, ReduceHouseholds),
		Auth:          NewStore(AuthState{}, ReduceAuth),
		Messages:      NewStore(MessageState{}, ReduceMessages),
		UI:            NewStore(UIState{}, ReduceUI),
	}
}
