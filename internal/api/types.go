package api

import "time"

// Participant is a read-only projection of a user embedded in conversations.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"displayName"`
}

// Conversation is one entry of the inbox as the server last reported it.
type Conversation struct {
	ID                 string        `json:"id"`
	Participants       []Participant `json:"participants"`
	AdID               string        `json:"adId"`
	AdTitle            string        `json:"adTitle"`
	LastMessagePreview string        `json:"lastMessagePreview"`
	UnreadCount        int           `json:"unreadCount"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// OtherParticipant returns the counterpart of selfID in the conversation.
func (c *Conversation) OtherParticipant(selfID string) Participant {
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p
		}
	}
	if len(c.Participants) > 0 {
		return c.Participants[0]
	}
	return Participant{}
}

// Inbox is the GET /chats payload. TotalUnread is the server-computed
// aggregate; the client never recomputes it from UnreadCount fields.
type Inbox struct {
	Conversations []Conversation `json:"chats"`
	TotalUnread   int            `json:"totalUnread"`
}

// Message is a server-confirmed chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Session is the result of a successful login.
type Session struct {
	Token  string
	UserID string
	Name   string
	Email  string
}
