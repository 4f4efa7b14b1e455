package domain

import (
	"slices"
	"time"
)

type Goal struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Shared    bool      `json:"shared"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"createdBy"`
}

type Memory struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"imageURL"`
	Favorite  bool      `json:"favorite"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mailbox is the single-slot notification document of an account.
type Mailbox struct {
	AccountID string `json:"accountId"`
	Message   string `json:"message"`
	Unread    bool   `json:"unread"`
}

// Members returns the membership set for a shared document: just the owner
// when unpaired, otherwise owner and partner.
func Members(ownerID, partnerID string) []string {
	if partnerID == "" {
		return []string{ownerID}
	}
	return []string{ownerID, partnerID}
}

// HasMember reports whether id is in members.
func HasMember(members []string, id string) bool {
	return slices.Contains(members, id)
}
