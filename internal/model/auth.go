package model

import (
	"encoding/json"
	"strings"
)

// Tokens is the credential pair kept in the token store. A nil field means
// "unchanged" when written.
type Tokens struct {
	AccessToken  *string `json:"accessToken"`
	RefreshToken *string `json:"refreshToken"`
}

// AuthResult is the data payload of login, register and refresh.
type AuthResult struct {
	AccessToken  *string `json:"accessToken"`
	RefreshToken *string `json:"refreshToken"`
	User         *User   `json:"user,omitempty"`
	Tenant       *Tenant `json:"tenant,omitempty"`
	Message      string  `json:"message,omitempty"`
}

func (r AuthResult) Tokens() Tokens {
	return Tokens{AccessToken: nonEmpty(r.AccessToken), RefreshToken: nonEmpty(r.RefreshToken)}
}

func nonEmpty(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}

	return v
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Message decodes payloads the API sends either as a bare string or as
// {"message": "..."}.
type Message string

func (m *Message) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*m = Message(text)
		return nil
	}

	var wrapped struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}

	*m = Message(wrapped.Message)
	return nil
}
