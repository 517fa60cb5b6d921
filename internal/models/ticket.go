package models

import (
	"time"
)

// TicketCategory classifies what a support ticket is about.
type TicketCategory string

const (
	CategoryBooking      TicketCategory = "booking"
	CategoryCancellation TicketCategory = "cancellation"
	CategoryRefund       TicketCategory = "refund"
	CategoryBaggage      TicketCategory = "baggage"
	CategoryFlightChange TicketCategory = "flight_change"
	CategoryComplaint    TicketCategory = "complaint"
	CategoryGeneral      TicketCategory = "general"
)

// TicketPriority represents urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusPending    TicketStatus = "pending"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// TicketSource records how a ticket entered the system.
type TicketSource string

const (
	SourceManual TicketSource = "manual"
	SourceEmail  TicketSource = "email"
	SourcePhone  TicketSource = "phone"
)

// Ticket represents a support ticket.
type Ticket struct {
	ID                int64          `json:"id" db:"id"`
	TicketNumber      string         `json:"ticket_number" db:"ticket_number"`
	ReservationNumber string         `json:"reservation_number,omitempty" db:"reservation_number"`
	CustomerID        int64          `json:"customer_id" db:"customer_id"`
	AssignedTo        *int64         `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedBy         int64          `json:"created_by" db:"created_by"`
	Subject           string         `json:"subject" db:"subject"`
	Description       string         `json:"description" db:"description"`
	Category          TicketCategory `json:"category" db:"category"`
	Priority          TicketPriority `json:"priority" db:"priority"`
	Status            TicketStatus   `json:"status" db:"status"`
	Source            TicketSource   `json:"source" db:"source"`
	EmailMessageID    string         `json:"email_message_id,omitempty" db:"email_message_id"`
	EmailThreadID     string         `json:"email_thread_id,omitempty" db:"email_thread_id"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	Metadata          map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreateTime        time.Time      `json:"create_time" db:"create_time"`
	ChangeTime        time.Time      `json:"change_time" db:"change_time"`

	// Joined fields (populated when needed)
	Customer *Customer     `json:"customer,omitempty"`
	Replies  []TicketReply `json:"replies,omitempty"`
}

// IsOpen reports whether the ticket is in an active state.
func (t *Ticket) IsOpen() bool {
	switch t.Status {
	case StatusOpen, StatusInProgress, StatusPending:
		return true
	}
	return false
}

// NeedsReopen reports whether a customer follow-up should move the ticket
// back to open.
func (t *Ticket) NeedsReopen() bool {
	return t.Status == StatusResolved || t.Status == StatusClosed
}

// ReplyType distinguishes customer-facing replies from internal notes.
type ReplyType string

const (
	ReplyTypeReply        ReplyType = "reply"
	ReplyTypeInternalNote ReplyType = "internal_note"
	ReplyTypeSystem       ReplyType = "system"
)

// TicketReply is a single message appended to a ticket. Replies are
// append-only and ordered by creation time.
type TicketReply struct {
	ID                int64              `json:"id" db:"id"`
	TicketID          int64              `json:"ticket_id" db:"ticket_id"`
	UserID            int64              `json:"user_id" db:"user_id"`
	Message           string             `json:"message" db:"message"`
	Type              ReplyType          `json:"type" db:"type"`
	IsCustomerVisible bool               `json:"is_customer_visible" db:"is_customer_visible"`
	EmailMessageID    string             `json:"email_message_id,omitempty" db:"email_message_id"`
	Attachments       []StoredAttachment `json:"attachments,omitempty" db:"attachments"`
	CreateTime        time.Time          `json:"create_time" db:"create_time"`
}
