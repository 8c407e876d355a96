package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/api"
)

// User is the authenticated user as reported by the backend.
type User = api.User

// AuthState is the observable authentication state.
//
// The zero value is not the initial state; see [InitialState]. An empty Error means no
// error is recorded.
type AuthState struct {
	User              *User  `json:"user"`
	IsAuthenticated   bool   `json:"is_authenticated"`
	IsLoading         bool   `json:"is_loading"`
	Error             string `json:"error,omitempty"`
	TwoFactorRequired bool   `json:"two_factor_required"`
}

// InitialState is the state before Init has run: loading, nobody signed in.
func InitialState() AuthState {
	return AuthState{IsLoading: true}
}

// EventType names a state transition event.
type EventType string

const (
	EventLoginStart           EventType = "LOGIN_START"
	EventLoginSuccess         EventType = "LOGIN_SUCCESS"
	EventLoginFailure         EventType = "LOGIN_FAILURE"
	EventLogout               EventType = "LOGOUT"
	EventTokenRefresh         EventType = "TOKEN_REFRESH"
	EventSetError             EventType = "SET_ERROR"
	EventClearError           EventType = "CLEAR_ERROR"
	EventSetTwoFactorRequired EventType = "SET_TWO_FACTOR_REQUIRED"
)

// Event is a state transition request. The concrete types in this package are the
// only events [Reduce] acts on; any other implementation is ignored.
type Event interface {
	EventType() EventType
}

type (
	LoginStart           struct{}
	LoginSuccess         struct{ User *User }
	LoginFailure         struct{ Err string }
	Logout               struct{}
	TokenRefresh         struct{ User *User }
	SetError             struct{ Err string }
	ClearError           struct{}
	SetTwoFactorRequired struct{ Required bool }
)

func (LoginStart) EventType() EventType           { return EventLoginStart }
func (LoginSuccess) EventType() EventType         { return EventLoginSuccess }
func (LoginFailure) EventType() EventType         { return EventLoginFailure }
func (Logout) EventType() EventType               { return EventLogout }
func (TokenRefresh) EventType() EventType         { return EventTokenRefresh }
func (SetError) EventType() EventType             { return EventSetError }
func (ClearError) EventType() EventType           { return EventClearError }
func (SetTwoFactorRequired) EventType() EventType { return EventSetTwoFactorRequired }

// Reduce applies ev to s and returns the next state. It is pure: s is not modified and
// the returned state shares no memory with ev.
//
//	LOGIN_START                  isLoading=true, error=null
//	LOGIN_SUCCESS(user)          user=user, isAuthenticated=(user!=nil), isLoading=false, error=null, twoFactorRequired=false
//	LOGIN_FAILURE(err)           user=null, isAuthenticated=false, isLoading=false, error=err
//	LOGOUT                       user=null, isAuthenticated=false, isLoading=false, error=null
//	TOKEN_REFRESH(user)          user=user
//	SET_ERROR(err)               error=err
//	CLEAR_ERROR                  error=null
//	SET_TWO_FACTOR_REQUIRED(req) twoFactorRequired=req, isLoading=false
//
// Unknown and nil events return s unchanged.
func Reduce(s AuthState, ev Event) AuthState {
	switch e := ev.(type) {
	case LoginStart:
		s.IsLoading = true
		s.Error = ""
	case LoginSuccess:
		s.User = cloneUser(e.User)
		s.IsAuthenticated = e.User != nil
		s.IsLoading = false
		s.Error = ""
		s.TwoFactorRequired = false
	case LoginFailure:
		s.User = nil
		s.IsAuthenticated = false
		s.IsLoading = false
		s.Error = e.Err
	case Logout:
		s.User = nil
		s.IsAuthenticated = false
		s.IsLoading = false
		s.Error = ""
	case TokenRefresh:
		s.User = cloneUser(e.User)
	case SetError:
		s.Error = e.Err
	case ClearError:
		s.Error = ""
	case SetTwoFactorRequired:
		s.TwoFactorRequired = e.Required
		s.IsLoading = false
	}
	return s
}

// Transition is published to subscribers for every applied event.
type Transition struct {
	Event     Event     `json:"-"`
	Type      EventType `json:"event"`
	Prev      AuthState `json:"prev"`
	Next      AuthState `json:"next"`
	Timestamp time.Time `json:"timestamp"`
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
