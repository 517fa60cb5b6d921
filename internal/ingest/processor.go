// Package ingest turns normalized inbound emails into tickets or replies.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
	"github.com/rodrigofdzr/TARdesk/internal/sanitize"
)

// Actions reported in a Result.
const (
	ActionNewTicket = "new_ticket"
	ActionFollowUp  = "follow_up"
	ActionIgnored   = "ignored"
	ActionDuplicate = "duplicate"
	ActionEcho      = "echo_discarded"
)

// Result describes what ingestion did with one email.
type Result struct {
	Ticket *models.Ticket
	Action string
}

// Ingested reports whether a ticket or reply was created or confirmed.
func (r Result) Ingested() bool {
	return r.Ticket != nil
}

type ticketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	GetByTicketNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error)
	FindByEmailMessageID(ctx context.Context, messageID string) (*models.Ticket, error)
	FindByThreadID(ctx context.Context, threadID string) (*models.Ticket, error)
	FindNewestBySubjectLike(ctx context.Context, fragment string) (*models.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status models.TicketStatus) error
}

type replyStore interface {
	Create(ctx context.Context, reply *models.TicketReply) error
	FindByEmailMessageID(ctx context.Context, messageID string) (*models.TicketReply, error)
}

type customerStore interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
}

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type numberGenerator interface {
	Next(ctx context.Context) (string, error)
}

type attachmentResolver interface {
	Resolve(ctx context.Context, refs []models.AttachmentRef, messageID string) []models.StoredAttachment
}

// Notifier sends outbound confirmations. Failures are logged, never allowed
// to block ticket creation.
type Notifier interface {
	TicketCreated(ctx context.Context, ticket *models.Ticket, customer *models.Customer) error
}

// Processor implements the email-to-ticket pipeline after normalization:
// filtering, thread resolution, customer resolution and persistence.
type Processor struct {
	tickets   ticketStore
	replies   replyStore
	customers customerStore
	users     userStore
	numbers   numberGenerator

	attachments     attachmentResolver
	notifier        Notifier
	logger          *log.Logger
	systemUserID    int64
	ignoredSenders  []string
	ignoredSubjects []string
	autoReplyMarker string
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger overrides the logger used for diagnostics.
func WithProcessorLogger(logger *log.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProcessorSystemUser sets the agent account recorded as creator of
// email-sourced tickets.
func WithProcessorSystemUser(userID int64) ProcessorOption {
	return func(p *Processor) {
		if userID > 0 {
			p.systemUserID = userID
		}
	}
}

// WithProcessorAttachments wires the attachment resolver.
func WithProcessorAttachments(resolver attachmentResolver) ProcessorOption {
	return func(p *Processor) { p.attachments = resolver }
}

// WithProcessorNotifier wires the outbound notifier.
func WithProcessorNotifier(notifier Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = notifier }
}

// WithProcessorIgnoreList replaces the automated-mail filter lists.
func WithProcessorIgnoreList(senders, subjects []string) ProcessorOption {
	return func(p *Processor) {
		p.ignoredSenders = senders
		p.ignoredSubjects = subjects
	}
}

// WithProcessorAutoReplyMarker sets the string that identifies this system's
// own outbound notifications when they bounce back through the webhook.
func WithProcessorAutoReplyMarker(marker string) ProcessorOption {
	return func(p *Processor) { p.autoReplyMarker = marker }
}

// NewProcessor builds the ingestion processor.
func NewProcessor(tickets ticketStore, replies replyStore, customers customerStore, users userStore, numbers numberGenerator, opts ...ProcessorOption) *Processor {
	p := &Processor{
		tickets:         tickets,
		replies:         replies,
		customers:       customers,
		users:           users,
		numbers:         numbers,
		logger:          log.Default(),
		systemUserID:    1,
		ignoredSenders:  []string{"noreply@zoho.com"},
		ignoredSubjects: []string{"ZohoMail - New login activity"},
		autoReplyMarker: "Este es un email automático",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Process ingests one normalized email. A nil-ticket result with no error
// means the mail was deliberately not ingested (filtered, echo, duplicate
// reply of an unknown thread); the webhook still answers success so the
// provider does not retry.
func (p *Processor) Process(ctx context.Context, email *models.InboundEmail) (Result, error) {
	if email == nil {
		return Result{}, errors.New("ingest: email required")
	}
	if email.FromEmail == "" {
		return Result{}, errors.New("ingest: email has no sender")
	}

	if p.isIgnored(email) {
		p.logf("ingest: ignoring automated mail from=%s subject=%q", email.FromEmail, email.Subject)
		return Result{Action: ActionIgnored}, nil
	}

	// Redelivery of an already processed message must not create anything.
	if ticket := p.findProcessed(ctx, email.MessageID); ticket != nil {
		p.logf("ingest: message %s already processed as ticket %s", email.MessageID, ticket.TicketNumber)
		return Result{Ticket: ticket, Action: ActionDuplicate}, nil
	}

	if ticket := p.findExistingThread(ctx, email); ticket != nil {
		return p.appendReply(ctx, ticket, email)
	}
	return p.createTicket(ctx, email)
}

func (p *Processor) isIgnored(email *models.InboundEmail) bool {
	for _, sender := range p.ignoredSenders {
		if strings.EqualFold(email.FromEmail, sender) {
			return true
		}
	}
	for _, subject := range p.ignoredSubjects {
		if email.Subject == subject {
			return true
		}
	}
	return false
}

// findProcessed checks whether the message id already exists as a ticket or
// reply and resolves the owning ticket.
func (p *Processor) findProcessed(ctx context.Context, messageID string) *models.Ticket {
	if messageID == "" {
		return nil
	}
	ticket, err := p.tickets.FindByEmailMessageID(ctx, messageID)
	if err != nil {
		p.logf("ingest: duplicate check failed for %s: %v", messageID, err)
		return nil
	}
	if ticket != nil {
		return ticket
	}
	reply, err := p.replies.FindByEmailMessageID(ctx, messageID)
	if err != nil || reply == nil {
		return nil
	}
	parent, err := p.tickets.GetByID(ctx, reply.TicketID)
	if err != nil {
		return nil
	}
	return parent
}

// appendReply records an inbound follow-up on an existing ticket and reopens
// it when the sender is a customer.
func (p *Processor) appendReply(ctx context.Context, ticket *models.Ticket, email *models.InboundEmail) (Result, error) {
	message := p.cleanBody(email)

	// Our own outbound notifications sometimes come back through the
	// webhook when mailboxes auto-forward. Recognize and drop them.
	if p.autoReplyMarker != "" && strings.Contains(message, p.autoReplyMarker) {
		p.logf("ingest: discarding system echo for ticket %s", ticket.TicketNumber)
		return Result{Action: ActionEcho}, nil
	}

	// The agent-or-customer decision drives attribution and reopening, so a
	// failed lookup fails the delivery and the provider retries it.
	user, err := p.users.FindByEmail(ctx, email.FromEmail)
	if err != nil {
		return Result{}, fmt.Errorf("user lookup for %s: %w", email.FromEmail, err)
	}
	fromCustomer := user == nil
	authorID := ticket.CustomerID
	if user != nil {
		authorID = user.ID
	}

	var stored []models.StoredAttachment
	if p.attachments != nil {
		stored = p.attachments.Resolve(ctx, email.Attachments, email.MessageID)
	}

	reply := &models.TicketReply{
		TicketID:          ticket.ID,
		UserID:            authorID,
		Message:           message,
		Type:              models.ReplyTypeReply,
		IsCustomerVisible: true,
		EmailMessageID:    email.MessageID,
		Attachments:       stored,
	}
	if err := p.replies.Create(ctx, reply); err != nil {
		if database.IsUniqueViolation(err) {
			p.logf("ingest: concurrent redelivery of %s, reply already stored", email.MessageID)
			return Result{Ticket: ticket, Action: ActionDuplicate}, nil
		}
		return Result{}, err
	}

	if fromCustomer && ticket.NeedsReopen() {
		if err := p.tickets.UpdateStatus(ctx, ticket.ID, models.StatusOpen); err != nil {
			p.logf("ingest: reopen of ticket %s failed: %v", ticket.TicketNumber, err)
		} else {
			ticket.Status = models.StatusOpen
		}
	}

	p.logf("ingest: appended reply %d to ticket %s (from_customer=%t)", reply.ID, ticket.TicketNumber, fromCustomer)
	return Result{Ticket: ticket, Action: ActionFollowUp}, nil
}

// createTicket opens a new ticket, creating the customer when unknown.
func (p *Processor) createTicket(ctx context.Context, email *models.InboundEmail) (Result, error) {
	customer, err := p.findOrCreateCustomer(ctx, email)
	if err != nil {
		return Result{}, err
	}

	ticketNumber, err := p.numbers.Next(ctx)
	if err != nil {
		return Result{}, err
	}

	var stored []models.StoredAttachment
	if p.attachments != nil {
		stored = p.attachments.Resolve(ctx, email.Attachments, email.MessageID)
	}

	metadata := map[string]any{
		"original_email": email.RawPayload,
		"attachments":    stored,
	}

	ticket := &models.Ticket{
		TicketNumber:      ticketNumber,
		ReservationNumber: ExtractReservationNumber(email.Subject, email.BodyText),
		CustomerID:        customer.ID,
		CreatedBy:         p.systemUserID,
		Subject:           CleanSubject(email.Subject),
		Description:       p.cleanBody(email),
		Category:          DetectCategory(email.Subject),
		Priority:          DetectPriority(email.Subject, email.BodyText),
		Status:            models.StatusOpen,
		Source:            models.SourceEmail,
		EmailMessageID:    email.MessageID,
		EmailThreadID:     "email_" + uuid.NewString(),
		Metadata:          metadata,
	}
	if err := p.tickets.Create(ctx, ticket); err != nil {
		if database.IsUniqueViolation(err) {
			if existing := p.findProcessed(ctx, email.MessageID); existing != nil {
				p.logf("ingest: concurrent redelivery of %s, ticket already stored", email.MessageID)
				return Result{Ticket: existing, Action: ActionDuplicate}, nil
			}
		}
		return Result{}, err
	}

	if p.notifier != nil {
		if err := p.notifier.TicketCreated(ctx, ticket, customer); err != nil {
			p.logf("ingest: confirmation notify failed for ticket %s: %v", ticket.TicketNumber, err)
		}
	}

	p.logf("ingest: created ticket %s for %s (category=%s priority=%s)",
		ticket.TicketNumber, email.FromEmail, ticket.Category, ticket.Priority)
	return Result{Ticket: ticket, Action: ActionNewTicket}, nil
}

func (p *Processor) findOrCreateCustomer(ctx context.Context, email *models.InboundEmail) (*models.Customer, error) {
	customer, err := p.customers.FindByEmail(ctx, email.FromEmail)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}
	first, last := parseSenderName(email.FromName, email.FromEmail)
	customer = &models.Customer{
		FirstName: first,
		LastName:  last,
		Email:     email.FromEmail,
		Status:    "active",
	}
	if err := p.customers.Create(ctx, customer); err != nil {
		if database.IsUniqueViolation(err) {
			return p.customers.FindByEmail(ctx, email.FromEmail)
		}
		return nil, err
	}
	p.logf("ingest: created customer %d for %s", customer.ID, customer.Email)
	return customer, nil
}

// cleanBody prefers the HTML body when present; both paths run through the
// sanitizer.
func (p *Processor) cleanBody(email *models.InboundEmail) string {
	body := email.BodyHTML
	if body == "" {
		body = email.BodyText
	}
	return sanitize.Clean(body)
}

func (p *Processor) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
