package domain

import "time"

const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// InviteToken is a single-use code that pairs a new account with its owner
// at signup.
type InviteToken struct {
	Code    string `json:"code"`
	OwnerID string `json:"userId"`
}

type ConnectionRequest struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	// Joined for listing
	FromUsername string `json:"fromUsername,omitempty"`
	ToUsername   string `json:"toUsername,omitempty"`
}

// RequestID is the deterministic key of a request from one account to
// another, so re-sending overwrites instead of duplicating.
func RequestID(fromID, toID string) string {
	return fromID + "_" + toID
}

// ReconcileResult describes what a pairing consistency check found.
type ReconcileResult struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
	PartnerID string `json:"partnerId,omitempty"`
}

const (
	ReconcileOK       = "ok"
	ReconcileUnpaired = "unpaired"
	ReconcileHealed   = "healed"
)
