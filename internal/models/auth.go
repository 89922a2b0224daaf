package models

// Credentials are sent once to /api/auth/login and never stored.
type Credentials struct {
	Username string `json:"username" validate:"required,notblank,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,min=3,max=20"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResponse is the body of a successful login.
type AuthResponse struct {
	Token string `json:"token"`
}

// Session is the authenticated identity derived from a bearer token.
type Session struct {
	Token string
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// ThrottleState is what the login form needs to render its submit button.
type ThrottleState struct {
	Active           bool
	RemainingSeconds int
}
