package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/rodrigofdzr/TARdesk/internal/config"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// Mailer sends ticket notifications over SMTP. A disabled Mailer is a valid
// no-op so callers never need a nil check.
type Mailer struct {
	cfg     config.SMTPConfig
	builder *HeaderBuilder
	logger  *log.Logger
	send    func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// MailerOption customizes a Mailer.
type MailerOption func(*Mailer)

// WithMailerLogger overrides the logger.
func WithMailerLogger(logger *log.Logger) MailerOption {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMailerSendFunc overrides the SMTP transport, for tests.
func WithMailerSendFunc(send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error) MailerOption {
	return func(m *Mailer) {
		if send != nil {
			m.send = send
		}
	}
}

// NewMailer builds a Mailer that stamps threading headers from builder.
func NewMailer(cfg config.SMTPConfig, builder *HeaderBuilder, opts ...MailerOption) *Mailer {
	m := &Mailer{
		cfg:     cfg,
		builder: builder,
		logger:  log.Default(),
		send:    smtp.SendMail,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// TicketCreated emails the customer a confirmation carrying the ticket token
// in the subject, so their reply threads back to the ticket.
func (m *Mailer) TicketCreated(ctx context.Context, ticket *models.Ticket, customer *models.Customer) error {
	if !m.cfg.Enabled {
		return nil
	}
	if customer == nil || customer.Email == "" {
		return fmt.Errorf("notifications: ticket %s has no recipient", ticket.TicketNumber)
	}
	headers := m.builder.ForTicket(ticket, nil, 0)
	body := fmt.Sprintf(
		"Hemos recibido tu solicitud y creado el ticket %s.\n\n"+
			"Asunto: %s\n\n"+
			"Responde a este correo para agregar información al ticket.\n\n"+
			"Este es un email automático, por favor no modifiques el asunto.\n",
		ticket.TicketNumber, ticket.Subject)
	return m.deliver(ctx, customer.Email, customer.FullName(), headers, body)
}

// ReplySent emails the customer an agent reply, extending the References
// chain with every message already in the thread.
func (m *Mailer) ReplySent(ctx context.Context, ticket *models.Ticket, reply *models.TicketReply, thread []*models.TicketReply, customer *models.Customer) error {
	if !m.cfg.Enabled {
		return nil
	}
	if customer == nil || customer.Email == "" {
		return fmt.Errorf("notifications: ticket %s has no recipient", ticket.TicketNumber)
	}
	headers := m.builder.ForTicket(ticket, thread, reply.ID)
	return m.deliver(ctx, customer.Email, customer.FullName(), headers, reply.Message)
}

func (m *Mailer) deliver(ctx context.Context, toAddr, toName string, headers ThreadingHeaders, body string) error {
	msg, err := m.compose(toAddr, toName, headers, body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if m.cfg.UseTLS {
		return m.deliverTLS(addr, auth, toAddr, msg)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{toAddr}, msg); err != nil {
		return fmt.Errorf("notifications: send to %s: %w", toAddr, err)
	}
	m.logger.Printf("notifications: sent %s to %s", headers.MessageID, toAddr)
	return nil
}

func (m *Mailer) deliverTLS(addr string, auth smtp.Auth, toAddr string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("notifications: connect %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("notifications: smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notifications: auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("notifications: set sender: %w", err)
	}
	if err := client.Rcpt(toAddr); err != nil {
		return fmt.Errorf("notifications: add recipient %s: %w", toAddr, err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("notifications: start data: %w", err)
	}
	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("notifications: write data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("notifications: close data: %w", err)
	}
	return client.Quit()
}

// compose renders the full RFC 2822 message with threading headers.
func (m *Mailer) compose(toAddr, toName string, headers ThreadingHeaders, body string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: "TARdesk", Address: m.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Name: toName, Address: toAddr}})
	h.SetSubject(headers.Subject)
	h.SetMsgIDList("Message-Id", []string{trimAngle(headers.MessageID)})
	if headers.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{trimAngle(headers.InReplyTo)})
	}
	if len(headers.References) > 0 {
		refs := make([]string, 0, len(headers.References))
		for _, ref := range headers.References {
			refs = append(refs, trimAngle(ref))
		}
		h.SetMsgIDList("References", refs)
	}
	h.Set("X-Ticket-ID", fmt.Sprintf("%d", headers.TicketID))
	if headers.ThreadID != "" {
		h.Set("X-Thread-ID", headers.ThreadID)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	writer, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("notifications: compose: %w", err)
	}
	if _, err := io.WriteString(writer, body); err != nil {
		writer.Close()
		return nil, fmt.Errorf("notifications: compose body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("notifications: compose close: %w", err)
	}
	return buf.Bytes(), nil
}

func trimAngle(id string) string {
	return strings.Trim(id, "<>")
}
