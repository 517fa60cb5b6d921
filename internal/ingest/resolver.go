package ingest

import (
	"context"
	"regexp"

	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// ticketTokenPattern matches the ticket token our outbound subjects carry,
// e.g. [TK-2025-000042].
var ticketTokenPattern = regexp.MustCompile(`\[TK-(\d{4}-\d{6})\]`)

// findExistingThread decides which ticket an inbound email belongs to, or
// nil when it starts a new thread. Lookups are tried in decreasing order of
// confidence and stop at the first hit:
//
//  1. ticket-number token in the subject
//  2. In-Reply-To against stored ticket and reply message ids
//  3. each References entry, same dual lookup, in array order
//  4. subject token against stored thread ids
//  5. fuzzy subject substring match, newest ticket wins
//
// Headers are authoritative when present; the subject fallback exists only
// because many mail clients drop In-Reply-To/References on manual replies.
// Step 5 can mis-thread unrelated mails that share wording; that imprecision
// is accepted, most recent match wins.
func (p *Processor) findExistingThread(ctx context.Context, email *models.InboundEmail) *models.Ticket {
	if m := ticketTokenPattern.FindStringSubmatch(email.Subject); m != nil {
		if ticket := p.lookupTicketNumber(ctx, "TK-"+m[1]); ticket != nil {
			return ticket
		}
	}

	if email.InReplyTo != "" {
		if ticket := p.lookupMessageID(ctx, email.InReplyTo); ticket != nil {
			return ticket
		}
	}

	for _, reference := range email.References {
		if reference == "" {
			continue
		}
		if ticket := p.lookupMessageID(ctx, reference); ticket != nil {
			return ticket
		}
	}

	if m := ticketTokenPattern.FindStringSubmatch(email.Subject); m != nil {
		ticket, err := p.tickets.FindByThreadID(ctx, m[1])
		if err != nil {
			p.logf("ingest: thread id lookup failed for %s: %v", m[1], err)
		} else if ticket != nil {
			return ticket
		}
	}

	cleaned := CleanSubject(email.Subject)
	if cleaned == "" || cleaned == "Email sin asunto" {
		return nil
	}
	ticket, err := p.tickets.FindNewestBySubjectLike(ctx, cleaned)
	if err != nil {
		p.logf("ingest: fuzzy subject lookup failed for %q: %v", cleaned, err)
		return nil
	}
	return ticket
}

func (p *Processor) lookupTicketNumber(ctx context.Context, ticketNumber string) *models.Ticket {
	ticket, err := p.tickets.GetByTicketNumber(ctx, ticketNumber)
	if err != nil {
		p.logf("ingest: ticket number lookup failed for %s: %v", ticketNumber, err)
		return nil
	}
	return ticket
}

// lookupMessageID matches a message id against tickets first, then replies.
// A reply match resolves to its parent ticket.
func (p *Processor) lookupMessageID(ctx context.Context, messageID string) *models.Ticket {
	ticket, err := p.tickets.FindByEmailMessageID(ctx, messageID)
	if err != nil {
		p.logf("ingest: message id lookup failed for %s: %v", messageID, err)
		return nil
	}
	if ticket != nil {
		return ticket
	}
	reply, err := p.replies.FindByEmailMessageID(ctx, messageID)
	if err != nil {
		p.logf("ingest: reply message id lookup failed for %s: %v", messageID, err)
		return nil
	}
	if reply == nil {
		return nil
	}
	parent, err := p.tickets.GetByID(ctx, reply.TicketID)
	if err != nil {
		p.logf("ingest: parent ticket lookup failed for reply %d: %v", reply.ID, err)
		return nil
	}
	return parent
}
