package models

// User is the identity returned by login and token verification.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// UserInput is the body for admin create/update of a user. Password is only
// sent on create.
type UserInput struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
}
