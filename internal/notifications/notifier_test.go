package notifications

import (
	"context"
	"io"
	"log"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rodrigofdzr/TARdesk/internal/config"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func testMailer(t *testing.T, enabled bool) (*Mailer, *[]sentMail) {
	t.Helper()
	var sent []sentMail
	m := NewMailer(
		config.SMTPConfig{
			Enabled: enabled,
			Host:    "smtp.example.com",
			Port:    "587",
			From:    "soporte@tardesk.com",
		},
		testBuilder(),
		WithMailerLogger(log.New(io.Discard, "", 0)),
		WithMailerSendFunc(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: msg})
			return nil
		}),
	)
	return m, &sent
}

func TestTicketCreatedSendsConfirmation(t *testing.T) {
	m, sent := testMailer(t, true)
	ticket := &models.Ticket{
		ID:             7,
		TicketNumber:   "TK-2026-000007",
		Subject:        "Equipaje",
		EmailMessageID: "<original@customer.com>",
		EmailThreadID:  "email_abc",
	}
	customer := &models.Customer{FirstName: "Ana", LastName: "García", Email: "ana@example.com"}

	if err := m.TicketCreated(context.Background(), ticket, customer); err != nil {
		t.Fatalf("TicketCreated returned error: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(*sent))
	}
	mail := (*sent)[0]
	if mail.addr != "smtp.example.com:587" || mail.from != "soporte@tardesk.com" {
		t.Fatalf("unexpected transport parameters %+v", mail)
	}
	if len(mail.to) != 1 || mail.to[0] != "ana@example.com" {
		t.Fatalf("unexpected recipients %v", mail.to)
	}
	body := string(mail.msg)
	if !strings.Contains(body, "TK-2026-000007") {
		t.Fatalf("ticket number missing from message:\n%s", body)
	}
	if !strings.Contains(body, "In-Reply-To:") || !strings.Contains(body, "original@customer.com") {
		t.Fatalf("threading headers missing:\n%s", body)
	}
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "x-ticket-id: 7") || !strings.Contains(lower, "x-thread-id: email_abc") {
		t.Fatalf("custom headers missing:\n%s", body)
	}
	if !strings.Contains(body, "Este es un email autom") {
		t.Fatalf("echo marker missing from confirmation body:\n%s", body)
	}
}

func TestDisabledMailerIsNoop(t *testing.T) {
	m, sent := testMailer(t, false)
	err := m.TicketCreated(context.Background(),
		&models.Ticket{ID: 1, TicketNumber: "TK-2026-000001"},
		&models.Customer{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("disabled mailer returned error: %v", err)
	}
	if len(*sent) != 0 {
		t.Fatalf("disabled mailer must not send")
	}
}

func TestTicketCreatedRequiresRecipient(t *testing.T) {
	m, _ := testMailer(t, true)
	ticket := &models.Ticket{ID: 1, TicketNumber: "TK-2026-000001"}
	if err := m.TicketCreated(context.Background(), ticket, nil); err == nil {
		t.Fatalf("expected error without recipient")
	}
	if err := m.TicketCreated(context.Background(), ticket, &models.Customer{}); err == nil {
		t.Fatalf("expected error with empty address")
	}
}

func TestReplySentExtendsChain(t *testing.T) {
	m, sent := testMailer(t, true)
	ticket := &models.Ticket{
		ID:             7,
		TicketNumber:   "TK-2026-000007",
		Subject:        "Equipaje",
		EmailMessageID: "<original@customer.com>",
	}
	thread := []*models.TicketReply{{ID: 1, EmailMessageID: "<r1@zoho.com>"}}
	reply := &models.TicketReply{ID: 2, Message: "Encontramos tu maleta"}

	if err := m.ReplySent(context.Background(), ticket, reply, thread, &models.Customer{Email: "ana@example.com"}); err != nil {
		t.Fatalf("ReplySent returned error: %v", err)
	}
	body := string((*sent)[0].msg)
	if !strings.Contains(body, "r1@zoho.com") || !strings.Contains(body, "original@customer.com") {
		t.Fatalf("references chain missing:\n%s", body)
	}
	if !strings.Contains(body, "Encontramos tu maleta") {
		t.Fatalf("reply body missing:\n%s", body)
	}
}
