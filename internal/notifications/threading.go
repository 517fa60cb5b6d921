// Package notifications sends outbound ticket mail with the RFC 2822
// threading headers that keep customer replies attached to their ticket.
package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// Clock abstracts time for deterministic message ids in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ThreadingHeaders carries everything an outbound notification needs to land
// in the same mail-client conversation as the customer's original message.
type ThreadingHeaders struct {
	MessageID  string
	InReplyTo  string
	References []string
	Subject    string
	TicketID   int64
	ThreadID   string
}

// HeaderBuilder derives threading headers from a ticket and its reply chain.
type HeaderBuilder struct {
	hostname string
	clock    Clock
}

// NewHeaderBuilder builds headers with message ids scoped to hostname.
func NewHeaderBuilder(hostname string) *HeaderBuilder {
	if hostname == "" {
		hostname = "tardesk.local"
	}
	return &HeaderBuilder{hostname: hostname, clock: systemClock{}}
}

// WithClock overrides the time source.
func (b *HeaderBuilder) WithClock(clock Clock) *HeaderBuilder {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// GenerateMessageID produces the id for an outbound mail about a ticket.
// A zero replyID means the mail concerns the ticket itself.
func (b *HeaderBuilder) GenerateMessageID(ticketID, replyID int64) string {
	ts := b.clock.Now().Unix()
	if replyID > 0 {
		return fmt.Sprintf("<ticket-%d-reply-%d-%d@%s>", ticketID, replyID, ts, b.hostname)
	}
	return fmt.Sprintf("<ticket-%d-%d@%s>", ticketID, ts, b.hostname)
}

// ForTicket builds the headers for a notification about ticket. The reply
// chain, oldest first, extends the References header so threading survives
// clients that ignore In-Reply-To.
func (b *HeaderBuilder) ForTicket(ticket *models.Ticket, replies []*models.TicketReply, replyID int64) ThreadingHeaders {
	h := ThreadingHeaders{
		MessageID: b.GenerateMessageID(ticket.ID, replyID),
		Subject:   ThreadedSubject(ticket),
		TicketID:  ticket.ID,
		ThreadID:  ticket.EmailThreadID,
	}
	if ticket.EmailMessageID != "" {
		h.InReplyTo = ticket.EmailMessageID
		h.References = append(h.References, ticket.EmailMessageID)
	}
	for _, reply := range replies {
		if reply.EmailMessageID != "" {
			h.References = append(h.References, reply.EmailMessageID)
			h.InReplyTo = reply.EmailMessageID
		}
	}
	return h
}

// ThreadedSubject prefixes the subject with the ticket token so follow-ups
// resolve even when the provider rewrites message ids.
func ThreadedSubject(ticket *models.Ticket) string {
	subject := strings.TrimSpace(ticket.Subject)
	token := "[" + ticket.TicketNumber + "]"
	if strings.Contains(subject, token) {
		if strings.HasPrefix(strings.ToLower(subject), "re:") {
			return subject
		}
		return "Re: " + subject
	}
	return "Re: " + token + " " + subject
}
