package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message is a directed message from one user to one or more recipients.
// A message without a parent is the root of its thread.
type Message struct {
	ID              string      `db:"id" bson:"_id" json:"id"`
	SenderID        string      `db:"sender_id" bson:"sender_id" json:"sender_id"`
	Recipients      []Recipient `db:"-" bson:"recipients" json:"recipients"`
	Subject         string      `db:"subject" bson:"subject" json:"subject"`
	Body            string      `db:"body" bson:"body" json:"body"`
	ParentMessageID *string     `db:"parent_message_id" bson:"parent_message_id,omitempty" json:"parent_message_id,omitempty"`
	Attachments     Attachments `db:"attachments" bson:"attachments" json:"attachments"`
	IsDeleted       bool        `db:"is_deleted" bson:"is_deleted" json:"is_deleted"`
	DeletedBy       []Deletion  `db:"-" bson:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt       time.Time   `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// Recipient tracks when a single recipient first read a message.
type Recipient struct {
	MessageID string     `db:"message_id" bson:"-" json:"-"`
	UserID    string     `db:"user_id" bson:"user_id" json:"user_id"`
	ReadAt    *time.Time `db:"read_at" bson:"read_at" json:"read_at"`
}

// Deletion records that a user removed a message from their own view.
type Deletion struct {
	MessageID string    `db:"message_id" bson:"-" json:"-"`
	UserID    string    `db:"user_id" bson:"user_id" json:"user_id"`
	DeletedAt time.Time `db:"deleted_at" bson:"deleted_at" json:"deleted_at"`
}

// Attachment is metadata for a file kept in object storage.
type Attachment struct {
	Name string `bson:"name" json:"name" binding:"required"`
	URL  string `bson:"url" json:"url" binding:"required,url"`
	Type string `bson:"type" json:"type"`
	Size int64  `bson:"size" json:"size" binding:"gte=0"`
}

// Attachments is stored as a JSONB column.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *Attachments) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("attachments: unsupported column type")
	}
	return json.Unmarshal(raw, a)
}

// RootID returns the id of the thread this message belongs to.
func (m Message) RootID() string {
	if m.ParentMessageID == nil {
		return m.ID
	}
	return *m.ParentMessageID
}

// Recipient returns the recipient entry for userID, if any.
func (m Message) Recipient(userID string) (Recipient, bool) {
	for _, r := range m.Recipients {
		if r.UserID == userID {
			return r, true
		}
	}
	return Recipient{}, false
}

// IsParticipant reports whether userID sent or received the message.
func (m Message) IsParticipant(userID string) bool {
	if m.SenderID == userID {
		return true
	}
	_, ok := m.Recipient(userID)
	return ok
}

// Participants lists the sender followed by each distinct recipient.
func (m Message) Participants() []string {
	ids := []string{m.SenderID}
	for _, r := range m.Recipients {
		if r.UserID != m.SenderID {
			ids = append(ids, r.UserID)
		}
	}
	return ids
}

// DeletedFor reports whether userID has removed the message from their view.
func (m Message) DeletedFor(userID string) bool {
	for _, d := range m.DeletedBy {
		if d.UserID == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether the message should show up in userID's lists.
func (m Message) VisibleTo(userID string) bool {
	return !m.IsDeleted && !m.DeletedFor(userID)
}

// UserProfile is the directory view of a user.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// ThreadMessage is a message annotated with its sender's profile.
type ThreadMessage struct {
	Message
	Sender UserProfile `json:"sender"`
}

// NotificationEvent is pushed to users over websockets.
type NotificationEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
}
