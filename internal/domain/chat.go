package domain

import (
	"sort"
	"strings"
	"time"
)

const (
	MessageText  = "text"
	MessageAudio = "audio"
)

type ChatMessage struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	Type       string    `json:"type"`
	Text       string    `json:"text,omitempty"`
	AudioURL   string    `json:"audioURL,omitempty"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

type TypingState struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ChatID is the canonical conversation key for two accounts: both ids sorted
// and joined with "_".
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
