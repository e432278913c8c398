package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"school-service/internal/models"
	"school-service/internal/observability"
	"school-service/internal/repositories"
)

const maxSubjectLength = 100

// MessageService implements messaging, threading and read tracking.
type MessageService struct {
	repo      repositories.MessageRepository
	directory UserDirectory
	notifier  Notifier
	events    EventPublisher
	now       func() time.Time
}

// NewMessageService builds a MessageService. notifier and events may be nil.
func NewMessageService(repo repositories.MessageRepository, directory UserDirectory, notifier Notifier, events EventPublisher) *MessageService {
	return &MessageService{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Draft is the user-supplied part of a new message.
type Draft struct {
	RecipientIDs    []string
	Subject         string
	Body            string
	ParentMessageID *string
	Attachments     []models.Attachment
}

// Send validates and stores a new root message or reply. A reply to a reply
// is attached to the thread root.
func (s *MessageService) Send(ctx context.Context, senderID string, draft Draft) (models.Message, error) {
	msg, err := buildMessage(senderID, draft)
	if err != nil {
		return models.Message{}, err
	}

	if draft.ParentMessageID != nil {
		parentID := strings.TrimSpace(*draft.ParentMessageID)
		parent, err := s.repo.GetMessage(ctx, parentID)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, fmt.Errorf("%w: parent message not found", ErrInvalidMessage)
		}
		if err != nil {
			return models.Message{}, storageError("load parent", err)
		}
		if !parent.IsParticipant(senderID) {
			return models.Message{}, ErrForbidden
		}
		rootID := parent.RootID()
		msg.ParentMessageID = &rootID
	}

	if err := s.repo.CreateMessage(ctx, &msg); err != nil {
		return models.Message{}, storageError("create message", err)
	}
	if msg.ParentMessageID == nil {
		observability.IncMessageSent("root")
	} else {
		observability.IncMessageSent("reply")
	}

	recipientIDs := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		recipientIDs = append(recipientIDs, r.UserID)
	}
	if s.notifier != nil {
		s.notifier.NotifyUsers(recipientIDs, models.NotificationEvent{Type: "message.new", Message: &msg})
	}
	publishEvent(ctx, s.events, "messages.sent", "message_sent", map[string]any{
		"message_id":    msg.ID,
		"sender_id":     msg.SenderID,
		"recipient_ids": recipientIDs,
		"thread_id":     msg.RootID(),
	})
	return msg, nil
}

func buildMessage(senderID string, draft Draft) (models.Message, error) {
	subject := strings.TrimSpace(draft.Subject)
	body := strings.TrimSpace(draft.Body)
	switch {
	case subject == "":
		return models.Message{}, fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case utf8.RuneCountInString(subject) > maxSubjectLength:
		return models.Message{}, fmt.Errorf("%w: subject exceeds %d characters", ErrInvalidMessage, maxSubjectLength)
	case body == "":
		return models.Message{}, fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}

	seen := map[string]struct{}{}
	recipients := make([]models.Recipient, 0, len(draft.RecipientIDs))
	for _, id := range draft.RecipientIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == senderID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, models.Recipient{UserID: id})
	}
	if len(recipients) == 0 {
		return models.Message{}, fmt.Errorf("%w: at least one recipient other than the sender is required", ErrInvalidMessage)
	}

	attachments := make(models.Attachments, 0, len(draft.Attachments))
	for _, a := range draft.Attachments {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.URL) == "" {
			return models.Message{}, fmt.Errorf("%w: attachment name and url are required", ErrInvalidMessage)
		}
		if a.Size < 0 {
			return models.Message{}, fmt.Errorf("%w: attachment size cannot be negative", ErrInvalidMessage)
		}
		attachments = append(attachments, a)
	}

	return models.Message{
		SenderID:    senderID,
		Recipients:  recipients,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	}, nil
}

// ResolveThread returns the live messages of the thread containing
// messageID, oldest first, each annotated with its sender. An unknown id
// yields an empty thread. A deleted root is left out even when replies remain.
func (s *MessageService) ResolveThread(ctx context.Context, messageID string) ([]models.ThreadMessage, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return []models.ThreadMessage{}, nil
	}
	if err != nil {
		return nil, storageError("load message", err)
	}

	members, err := s.repo.ListThread(ctx, msg.RootID())
	if err != nil {
		return nil, storageError("load thread", err)
	}

	live := make([]models.Message, 0, len(members))
	for _, m := range members {
		if m.IsDeleted {
			continue
		}
		live = append(live, m)
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].ID < live[j].ID
		}
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})

	return s.annotate(ctx, live)
}

// ThreadFor resolves the thread of messageID for one of its participants.
func (s *MessageService) ThreadFor(ctx context.Context, messageID, userID string) ([]models.ThreadMessage, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return []models.ThreadMessage{}, nil
	}
	if err != nil {
		return nil, storageError("load message", err)
	}
	if !msg.IsParticipant(userID) {
		return nil, ErrForbidden
	}
	return s.ResolveThread(ctx, messageID)
}

// MarkRead records the first read of a message by userID. It returns false
// when the user is not a recipient or had already read the message.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID string) (bool, error) {
	changed, err := s.repo.MarkRead(ctx, messageID, userID, s.now())
	if err != nil {
		return false, storageError("mark read", err)
	}
	if !changed {
		return false, nil
	}

	if s.notifier != nil || s.events != nil {
		if msg, err := s.repo.GetMessage(ctx, messageID); err == nil {
			if s.notifier != nil {
				s.notifier.NotifyUsers([]string{msg.SenderID}, models.NotificationEvent{Type: "message.read", MessageID: messageID, UserID: userID})
			}
			publishEvent(ctx, s.events, "messages.read", "message_read", map[string]any{
				"message_id": messageID,
				"reader_id":  userID,
				"sender_id":  msg.SenderID,
			})
		}
	}
	return true, nil
}

// Get returns a message to one of its participants.
func (s *MessageService) Get(ctx context.Context, messageID, userID string) (models.ThreadMessage, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.ThreadMessage{}, err
		}
		return models.ThreadMessage{}, storageError("load message", err)
	}
	if !msg.IsParticipant(userID) {
		return models.ThreadMessage{}, ErrForbidden
	}
	if !msg.VisibleTo(userID) {
		return models.ThreadMessage{}, repositories.ErrMessageNotFound
	}

	annotated, err := s.annotate(ctx, []models.Message{msg})
	if err != nil {
		return models.ThreadMessage{}, err
	}
	return annotated[0], nil
}

// Inbox lists messages received by userID, newest first.
func (s *MessageService) Inbox(ctx context.Context, userID string) ([]models.ThreadMessage, error) {
	msgs, err := s.repo.ListInbox(ctx, userID)
	if err != nil {
		return nil, storageError("list inbox", err)
	}
	return s.annotate(ctx, msgs)
}

// Sent lists messages sent by userID, newest first.
func (s *MessageService) Sent(ctx context.Context, userID string) ([]models.ThreadMessage, error) {
	msgs, err := s.repo.ListSent(ctx, userID)
	if err != nil {
		return nil, storageError("list sent", err)
	}
	return s.annotate(ctx, msgs)
}

// UnreadCount counts unread inbox messages.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, storageError("count unread", err)
	}
	return count, nil
}

// Delete hides a message from userID. Once every participant has deleted
// it the message is flagged deleted for everyone.
func (s *MessageService) Delete(ctx context.Context, messageID, userID string) (models.Message, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, err
		}
		return models.Message{}, storageError("load message", err)
	}
	if !msg.IsParticipant(userID) {
		return models.Message{}, ErrForbidden
	}

	updated, err := s.repo.SoftDelete(ctx, messageID, userID, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, err
		}
		return models.Message{}, storageError("delete message", err)
	}
	if updated.IsDeleted && !msg.IsDeleted {
		publishEvent(ctx, s.events, "messages.deleted", "message_deleted", map[string]any{"message_id": messageID})
	}
	return updated, nil
}

func (s *MessageService) annotate(ctx context.Context, msgs []models.Message) ([]models.ThreadMessage, error) {
	out := make([]models.ThreadMessage, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	senderIDs := make([]string, 0, len(msgs))
	seen := map[string]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles := map[string]models.UserProfile{}
	if s.directory != nil {
		users, err := s.directory.BulkUsers(ctx, senderIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
		}
		for _, u := range users {
			profiles[u.ID] = u
		}
	}

	for _, m := range msgs {
		sender, ok := profiles[m.SenderID]
		if !ok {
			sender = models.UserProfile{ID: m.SenderID}
		}
		out = append(out, models.ThreadMessage{Message: m, Sender: sender})
	}
	return out, nil
}
