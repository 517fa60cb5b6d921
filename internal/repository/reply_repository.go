package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// TicketReplyRepository handles database operations for ticket replies.
type TicketReplyRepository struct {
	db *database.DB
}

// NewTicketReplyRepository creates a new reply repository.
func NewTicketReplyRepository(db *database.DB) *TicketReplyRepository {
	return &TicketReplyRepository{db: db}
}

const replyColumns = `id, ticket_id, user_id, message, type, is_customer_visible,
	email_message_id, attachments, create_time`

// Create appends a reply to its ticket. Attachment metadata travels in the
// same insert so a reply and its attachments commit atomically.
func (r *TicketReplyRepository) Create(ctx context.Context, reply *models.TicketReply) error {
	now := time.Now()
	reply.CreateTime = now
	if reply.Type == "" {
		reply.Type = models.ReplyTypeReply
	}
	attachments, err := marshalAttachments(reply.Attachments)
	if err != nil {
		return fmt.Errorf("marshal reply attachments: %w", err)
	}

	query := `
		INSERT INTO ticket_replies (
			ticket_id, user_id, message, type, is_customer_visible,
			email_message_id, attachments, create_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	args := []any{
		reply.TicketID,
		reply.UserID,
		reply.Message,
		string(reply.Type),
		reply.IsCustomerVisible,
		nullString(reply.EmailMessageID),
		attachments,
		now,
	}

	if r.db.SupportsReturning() {
		return r.db.QueryRowContext(ctx, query+` RETURNING id`, args...).Scan(&reply.ID)
	}
	res, err := r.db.ExecContext(ctx, r.db.ConvertPlaceholders(query), args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	reply.ID = id
	return nil
}

// FindByEmailMessageID resolves the reply carrying the given Message-ID.
func (r *TicketReplyRepository) FindByEmailMessageID(ctx context.Context, messageID string) (*models.TicketReply, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + replyColumns + ` FROM ticket_replies WHERE email_message_id = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, messageID))
}

// ListByTicket returns the replies of a ticket ordered by creation time.
func (r *TicketReplyRepository) ListByTicket(ctx context.Context, ticketID int64) ([]models.TicketReply, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + replyColumns + `
		FROM ticket_replies WHERE ticket_id = $1 ORDER BY create_time, id`)
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var replies []models.TicketReply
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, *reply)
	}
	return replies, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TicketReplyRepository) scanOne(row *sql.Row) (*models.TicketReply, error) {
	reply, err := scanReply(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return reply, err
}

func scanReply(row rowScanner) (*models.TicketReply, error) {
	var (
		reply          models.TicketReply
		emailMessageID sql.NullString
		attachments    sql.NullString
	)
	err := row.Scan(
		&reply.ID, &reply.TicketID, &reply.UserID, &reply.Message, &reply.Type,
		&reply.IsCustomerVisible, &emailMessageID, &attachments, &reply.CreateTime,
	)
	if err != nil {
		return nil, err
	}
	reply.EmailMessageID = emailMessageID.String
	if attachments.Valid && attachments.String != "" {
		_ = json.Unmarshal([]byte(attachments.String), &reply.Attachments)
	}
	return &reply, nil
}

func marshalAttachments(list []models.StoredAttachment) (any, error) {
	if len(list) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
