package model

import (
	"strings"
	"time"
)

// User is a bank customer as returned by the profile and user listing endpoints
type User struct {
	ID          string `json:"_id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	SSN         string `json:"-"` // Never forward to the browser

	// Address
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`

	AccountType   string        `json:"accountType"`
	Username      string        `json:"username"`
	IsAdmin       bool          `json:"isAdmin"`
	AccountStatus AccountStatus `json:"accountStatus"`
	Wallet        string        `json:"wallet,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns the user's display name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsSuspended returns true if an administrator has suspended the account
func (u *User) IsSuspended() bool {
	return u.AccountStatus == AccountStatusSuspended
}

// LoginRequest is the payload for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present
func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrUsernameRequired
	}
	if r.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// LoginResponse carries the bearer token issued by the banking API
type LoginResponse struct {
	Token string `json:"token"`
}
