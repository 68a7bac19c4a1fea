package state

import "github.com/nhle/homesync/internal/model"

// AuthStatus is the lifecycle of the authenticated session.
type AuthStatus int

const (
	AuthAnonymous AuthStatus = iota
	AuthAuthenticated
	AuthExpired
)

func (s AuthStatus) String() string {
	switch s {
	case AuthAnonymous:
		return "anonymous"
	case AuthAuthenticated:
		return "authenticated"
	case AuthExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuthState describes who is signed in.
type AuthState struct {
	User   *model.User
	Status AuthStatus
}

// AuthAction is the closed set of auth transitions.
type AuthAction interface {
	authAction()
}

// LoggedIn records a successful authentication.
type LoggedIn struct {
	User model.User
}

// LoggedOut clears the session user.
type LoggedOut struct{}

// SessionExpired records that the server rejected the credentials.
type SessionExpired struct{}

func (LoggedIn) authAction()       {}
func (LoggedOut) authAction()      {}
func (SessionExpired) authAction() {}

// ReduceAuth is the auth reducer.
func ReduceAuth(s AuthState, a AuthAction) AuthState {
	switch a := a.(type) {
	case LoggedIn:
		user := a.User
		return AuthState{User: &user, Status: AuthAuthenticated}
	case LoggedOut:
		return AuthState{Status: AuthAnonymous}
	case SessionExpired:
		s.Status = AuthExpired
		return s
	}
	return s
}
