package notifications

import (
	"fmt"
	"testing"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/models"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testBuilder() *HeaderBuilder {
	return NewHeaderBuilder("tardesk.example.com").
		WithClock(fixedClock{now: time.Unix(1767225600, 0)})
}

func TestGenerateMessageID(t *testing.T) {
	b := testBuilder()
	want := fmt.Sprintf("<ticket-7-%d@tardesk.example.com>", int64(1767225600))
	if got := b.GenerateMessageID(7, 0); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	want = fmt.Sprintf("<ticket-7-reply-3-%d@tardesk.example.com>", int64(1767225600))
	if got := b.GenerateMessageID(7, 3); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestForTicketBuildsReferencesChain(t *testing.T) {
	ticket := &models.Ticket{
		ID:             7,
		TicketNumber:   "TK-2026-000007",
		Subject:        "Equipaje",
		EmailMessageID: "<original@customer.com>",
		EmailThreadID:  "email_abc",
	}
	replies := []*models.TicketReply{
		{ID: 1, EmailMessageID: "<r1@zoho.com>"},
		{ID: 2},
		{ID: 3, EmailMessageID: "<r3@zoho.com>"},
	}
	h := testBuilder().ForTicket(ticket, replies, 4)

	if h.InReplyTo != "<r3@zoho.com>" {
		t.Fatalf("expected In-Reply-To to point at the latest message, got %q", h.InReplyTo)
	}
	wantRefs := []string{"<original@customer.com>", "<r1@zoho.com>", "<r3@zoho.com>"}
	if len(h.References) != len(wantRefs) {
		t.Fatalf("unexpected references %v", h.References)
	}
	for i, want := range wantRefs {
		if h.References[i] != want {
			t.Fatalf("references[%d] = %q, want %q", i, h.References[i], want)
		}
	}
	if h.ThreadID != "email_abc" || h.TicketID != 7 {
		t.Fatalf("ticket identity lost: %+v", h)
	}
}

func TestForTicketWithoutInboundMessageID(t *testing.T) {
	ticket := &models.Ticket{ID: 8, TicketNumber: "TK-2026-000008", Subject: "Consulta"}
	h := testBuilder().ForTicket(ticket, nil, 0)
	if h.InReplyTo != "" || len(h.References) != 0 {
		t.Fatalf("expected empty chain for manual ticket, got %+v", h)
	}
}

func TestThreadedSubject(t *testing.T) {
	cases := []struct {
		ticket models.Ticket
		want   string
	}{
		{models.Ticket{TicketNumber: "TK-2026-000007", Subject: "Equipaje"}, "Re: [TK-2026-000007] Equipaje"},
		{models.Ticket{TicketNumber: "TK-2026-000007", Subject: "[TK-2026-000007] Equipaje"}, "Re: [TK-2026-000007] Equipaje"},
		{models.Ticket{TicketNumber: "TK-2026-000007", Subject: "Re: [TK-2026-000007] Equipaje"}, "Re: [TK-2026-000007] Equipaje"},
	}
	for _, tc := range cases {
		if got := ThreadedSubject(&tc.ticket); got != tc.want {
			t.Fatalf("ThreadedSubject(%q) = %q, want %q", tc.ticket.Subject, got, tc.want)
		}
	}
}
