package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"school-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for messages and their per-user state.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListThread(ctx context.Context, rootID string) ([]models.Message, error)
	ListInbox(ctx context.Context, userID string) ([]models.Message, error)
	ListSent(ctx context.Context, userID string) ([]models.Message, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, messageID string, userID string, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, messageID string, userID string, at time.Time) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `m.id, m.sender_id, m.subject, m.body, m.parent_message_id, m.attachments, m.is_deleted, m.created_at, m.updated_at`

// CreateMessage stores a message and its recipients in one transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg *models.Message) (err error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Attachments == nil {
		msg.Attachments = models.Attachments{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.QueryRowxContext(ctx, `INSERT INTO messages (id, sender_id, subject, body, parent_message_id, attachments)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		msg.ID, msg.SenderID, msg.Subject, msg.Body, msg.ParentMessageID, msg.Attachments).
		Scan(&msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return err
	}

	for i := range msg.Recipients {
		msg.Recipients[i].MessageID = msg.ID
		if _, err = tx.ExecContext(ctx, `INSERT INTO message_recipients (message_id, user_id) VALUES ($1, $2)`, msg.ID, msg.Recipients[i].UserID); err != nil {
			return err
		}
	}
	msg.DeletedBy = []models.Deletion{}

	return tx.Commit()
}

// GetMessage retrieves a single message with recipients and deletions.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return models.Message{}, ErrMessageNotFound
	}

	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages m WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	msgs := []models.Message{msg}
	if err := r.loadParticipants(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// ListThread returns the root and its direct replies, including deleted
// ones, ordered by creation.
func (r *MessageRepo) ListThread(ctx context.Context, rootID string) ([]models.Message, error) {
	if _, err := uuid.Parse(rootID); err != nil {
		return []models.Message{}, nil
	}
	query := `SELECT ` + messageColumns + ` FROM messages m
        WHERE m.id=$1 OR m.parent_message_id=$1
        ORDER BY m.created_at ASC, m.id ASC`
	return r.selectMessages(ctx, query, rootID)
}

// ListInbox returns messages received by the user that are still visible to them.
func (r *MessageRepo) ListInbox(ctx context.Context, userID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m
        INNER JOIN message_recipients mr ON mr.message_id = m.id AND mr.user_id = $1
        WHERE m.is_deleted = FALSE
        AND NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = $1)
        ORDER BY m.created_at DESC`
	return r.selectMessages(ctx, query, userID)
}

// ListSent returns messages sent by the user that are still visible to them.
func (r *MessageRepo) ListSent(ctx context.Context, userID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m
        WHERE m.sender_id = $1 AND m.is_deleted = FALSE
        AND NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = $1)
        ORDER BY m.created_at DESC`
	return r.selectMessages(ctx, query, userID)
}

// CountUnread counts visible inbox messages the user has not read yet.
func (r *MessageRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM message_recipients mr
        INNER JOIN messages m ON m.id = mr.message_id
        WHERE mr.user_id = $1 AND mr.read_at IS NULL AND m.is_deleted = FALSE
        AND NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = $1)`, userID)
	return count, err
}

// MarkRead sets read_at for the recipient when it is still unset. It reports
// whether this call performed the transition.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string, userID string, at time.Time) (bool, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE message_recipients SET read_at = $3
        WHERE message_id=$1 AND user_id=$2 AND read_at IS NULL`, messageID, userID, at)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// SoftDelete records the user's deletion once and flags the message deleted
// when every participant has removed it.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string, userID string, at time.Time) (msg models.Message, err error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return models.Message{}, ErrMessageNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// serializes concurrent deletes so the last participant always sees every deletion row
	var locked int
	if err = tx.GetContext(ctx, &locked, `SELECT 1 FROM messages WHERE id=$1 FOR UPDATE`, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
		}
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_deletions (message_id, user_id, deleted_at) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID, at); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE messages SET is_deleted = TRUE, updated_at = NOW()
        WHERE id = $1 AND is_deleted = FALSE
        AND NOT EXISTS (
            SELECT 1 FROM (
                SELECT sender_id AS user_id FROM messages WHERE id = $1
                UNION
                SELECT user_id FROM message_recipients WHERE message_id = $1
            ) p
            WHERE NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = $1 AND d.user_id = p.user_id)
        )`, messageID); err != nil {
		return models.Message{}, err
	}

	if err = tx.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages m WHERE m.id=$1`, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
		}
		return models.Message{}, err
	}
	msgs := []models.Message{msg}
	if err = loadParticipants(ctx, tx, msgs); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

func (r *MessageRepo) selectMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MessageRepo) loadParticipants(ctx context.Context, msgs []models.Message) error {
	return loadParticipants(ctx, r.db, msgs)
}

// loadParticipants fills recipients and deletions for msgs in two queries.
func loadParticipants(ctx context.Context, q sqlx.QueryerContext, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	index := make(map[string]int, len(msgs))
	for i, m := range msgs {
		ids = append(ids, m.ID)
		index[m.ID] = i
		msgs[i].Recipients = []models.Recipient{}
		msgs[i].DeletedBy = []models.Deletion{}
	}

	var recipients []models.Recipient
	if err := sqlx.SelectContext(ctx, q, &recipients, `SELECT message_id, user_id, read_at FROM message_recipients
        WHERE message_id = ANY($1) ORDER BY user_id`, pq.Array(ids)); err != nil {
		return err
	}
	for _, rc := range recipients {
		if i, ok := index[rc.MessageID]; ok {
			msgs[i].Recipients = append(msgs[i].Recipients, rc)
		}
	}

	var deletions []models.Deletion
	if err := sqlx.SelectContext(ctx, q, &deletions, `SELECT message_id, user_id, deleted_at FROM message_deletions
        WHERE message_id = ANY($1) ORDER BY deleted_at`, pq.Array(ids)); err != nil {
		return err
	}
	for _, d := range deletions {
		if i, ok := index[d.MessageID]; ok {
			msgs[i].DeletedBy = append(msgs[i].DeletedBy, d)
		}
	}
	return nil
}
