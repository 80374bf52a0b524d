package domain

import "time"

// User is a read-only copy of a directory entry. Only the online flag
// changes after creation, and only presence events change it.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Online bool   `json:"online"`
}

// RawChatRecord is one document from GET /chat/chats. The backend may
// expose several records for one logical pair; the aggregator collapses
// them.
type RawChatRecord struct {
	ID                   string    `json:"id"`
	Sender               *User     `json:"sender"`
	User                 *User     `json:"user"`
	LastMessage          string    `json:"lastMessage"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
}

// Conversation is the derived one-per-counterpart summary. Its fields
// are recomputed from known messages, never mutated independently.
type Conversation struct {
	Counterpart          User      `json:"counterpart"`
	ChatID               string    `json:"chatId,omitempty"`
	LastMessage          string    `json:"lastMessage"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
	Unread               bool      `json:"unread"`
}
