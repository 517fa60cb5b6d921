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

// TicketRepository handles database operations for tickets.
type TicketRepository struct {
	db *database.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, ticket_number, reservation_number, customer_id, assigned_to, created_by,
	subject, description, category, priority, status, source,
	email_message_id, email_thread_id, resolved_at, metadata, create_time, change_time`

// Create inserts the ticket. The unique index on email_message_id makes a
// concurrent redelivery of the same message fail here with a unique
// violation, which callers treat as "already processed".
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now()
	ticket.CreateTime = now
	ticket.ChangeTime = now
	if ticket.Status == "" {
		ticket.Status = models.StatusOpen
	}
	if ticket.Category == "" {
		ticket.Category = models.CategoryGeneral
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityNormal
	}

	metadata, err := marshalMetadata(ticket.Metadata)
	if err != nil {
		return fmt.Errorf("marshal ticket metadata: %w", err)
	}

	query := `
		INSERT INTO tickets (
			ticket_number, reservation_number, customer_id, assigned_to, created_by,
			subject, description, category, priority, status, source,
			email_message_id, email_thread_id, metadata, create_time, change_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	args := []any{
		ticket.TicketNumber,
		nullString(ticket.ReservationNumber),
		ticket.CustomerID,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.Subject,
		ticket.Description,
		string(ticket.Category),
		string(ticket.Priority),
		string(ticket.Status),
		string(ticket.Source),
		nullString(ticket.EmailMessageID),
		nullString(ticket.EmailThreadID),
		metadata,
		now,
		now,
	}

	if r.db.SupportsReturning() {
		return r.db.QueryRowContext(ctx, query+` RETURNING id`, args...).Scan(&ticket.ID)
	}
	res, err := r.db.ExecContext(ctx, r.db.ConvertPlaceholders(query), args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ticket.ID = id
	return nil
}

// GetByID fetches a single ticket.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByTicketNumber fetches a ticket by its human-readable number.
func (r *TicketRepository) GetByTicketNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, ticketNumber))
}

// FindByEmailMessageID looks up the ticket whose very first message carried
// the given Message-ID.
func (r *TicketRepository) FindByEmailMessageID(ctx context.Context, messageID string) (*models.Ticket, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + ticketColumns + ` FROM tickets WHERE email_message_id = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, messageID))
}

// FindByThreadID looks up a ticket by its opaque email thread token.
func (r *TicketRepository) FindByThreadID(ctx context.Context, threadID string) (*models.Ticket, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + ticketColumns + ` FROM tickets WHERE email_thread_id = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, threadID))
}

// FindNewestBySubjectLike matches subject as a substring, newest ticket
// first. This is the low-confidence fuzzy fallback of thread resolution.
func (r *TicketRepository) FindNewestBySubjectLike(ctx context.Context, fragment string) (*models.Ticket, error) {
	query := r.db.ConvertPlaceholders(`SELECT ` + ticketColumns + `
		FROM tickets WHERE subject LIKE $1 ORDER BY create_time DESC LIMIT 1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, "%"+fragment+"%"))
}

// UpdateStatus transitions the ticket status.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	query := r.db.ConvertPlaceholders(`UPDATE tickets SET status = $1, change_time = $2 WHERE id = $3`)
	_, err := r.db.ExecContext(ctx, query, string(status), time.Now(), id)
	return err
}

func (r *TicketRepository) scanOne(row *sql.Row) (*models.Ticket, error) {
	var (
		t                 models.Ticket
		reservationNumber sql.NullString
		assignedTo        sql.NullInt64
		emailMessageID    sql.NullString
		emailThreadID     sql.NullString
		resolvedAt        sql.NullTime
		metadata          sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.TicketNumber, &reservationNumber, &t.CustomerID, &assignedTo, &t.CreatedBy,
		&t.Subject, &t.Description, &t.Category, &t.Priority, &t.Status, &t.Source,
		&emailMessageID, &emailThreadID, &resolvedAt, &metadata, &t.CreateTime, &t.ChangeTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.ReservationNumber = reservationNumber.String
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	t.EmailMessageID = emailMessageID.String
	t.EmailThreadID = emailThreadID.String
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &t.Metadata)
	}
	return &t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
