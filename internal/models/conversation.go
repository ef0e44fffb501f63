package models

import "time"

// DateLayout is the calendar-date key format used by conversations and the timeline.
const DateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Message is one role-tagged message of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool {
	return m.Role == "user"
}

// Conversation is the stored summary of a processed conversation.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Entities  []string  `json:"entities"`
}

// TimelineEntry holds the entities and conversations active on one calendar date.
type TimelineEntry struct {
	Date          string   `json:"date"`
	Entities      []string `json:"entities"`
	Conversations []string `json:"conversations"`
}

// AddEntity adds id to the entry's entity set.
func (t *TimelineEntry) AddEntity(id string) {
	if !contains(t.Entities, id) {
		t.Entities = append(t.Entities, id)
	}
}

// AddConversation appends convID to the entry if absent.
func (t *TimelineEntry) AddConversation(convID string) {
	if !contains(t.Conversations, convID) {
		t.Conversations = append(t.Conversations, convID)
	}
}
