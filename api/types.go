package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// User is the account record returned by login, login verification and profile.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	IsVerified       bool       `json:"isVerified,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastLoginAttempt *time.Time `json:"lastLoginAttempt,omitempty"`
}

type wireUser struct {
	ID               json.RawMessage `json:"id"`
	MongoID          json.RawMessage `json:"_id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	IsVerified       bool            `json:"isVerified"`
	CreatedAt        *time.Time      `json:"createdAt"`
	UpdatedAt        *time.Time      `json:"updatedAt"`
	LastLoginAttempt *time.Time      `json:"lastLoginAttempt"`
}

// UnmarshalJSON accepts the id as a number or a string, under "id" or "_id".
func (u *User) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}
	if id == "" {
		if id, err = decodeID(w.MongoID); err != nil {
			return err
		}
	}

	*u = User{
		ID:               id,
		Name:             w.Name,
		Email:            w.Email,
		IsVerified:       w.IsVerified,
		LastLoginAttempt: w.LastLoginAttempt,
	}
	if w.CreatedAt != nil {
		u.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		u.UpdatedAt = *w.UpdatedAt
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// LoginOutcome is the tagged result of a password login.
type LoginOutcome interface {
	loginOutcome()
}

// LoginSucceeded carries an established session.
type LoginSucceeded struct {
	Token string
	User  User
}

// LoginNeedsVerification means the service emailed a login verification link.
type LoginNeedsVerification struct {
	VerificationToken string
	Email             string
}

func (LoginSucceeded) loginOutcome()         {}
func (LoginNeedsVerification) loginOutcome() {}

// Credentials is the password login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the account creation request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token                string `json:"token"`
	User                 *User  `json:"user"`
	RequiresVerification bool   `json:"requiresVerification"`
	VerificationToken    string `json:"verificationToken"`
	Email                string `json:"email"`
	Message              string `json:"message"`
}

type sessionResponse struct {
	Token   string `json:"token"`
	User    *User  `json:"user"`
	Message string `json:"message"`
}

type profileResponse struct {
	User *User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}
