package domain

import (
	"strings"
	"time"
)

type Account struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	UsernameLowercase string    `json:"usernameLowercase"`
	Email             string    `json:"email"`
	Location          string    `json:"location"`
	PartnerID         *string   `json:"partnerId"`
	InviteCode        string    `json:"inviteCode,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// HasPartner reports whether the account is currently paired.
func (a *Account) HasPartner() bool {
	return a.PartnerID != nil && *a.PartnerID != ""
}

// Partner returns the partner id, or "" when unpaired.
func (a *Account) Partner() string {
	if !a.HasPartner() {
		return ""
	}
	return *a.PartnerID
}

// NormalizeUsername is the search key stored as usernameLowercase.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ProfileUpdate carries the user-editable profile fields. Nil means
// "leave unchanged".
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Location *string `json:"location,omitempty"`
}

// Credential is the identity record for one sign-in method, keyed by the
// normalized email.
type Credential struct {
	Email        string `json:"email"`
	AccountID    string `json:"accountId"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Provider     string `json:"provider"`
	Subject      string `json:"subject,omitempty"`
}

const ProviderPassword = "password"

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
