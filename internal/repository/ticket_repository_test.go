package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

func TestTicketCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, func(tk *models.Ticket) {
		tk.ReservationNumber = "AB1234"
		tk.EmailMessageID = "<msg-1@zoho.com>"
		tk.EmailThreadID = "email_abc"
		tk.Metadata = map[string]any{"source_ip": "10.0.0.1"}
	})
	if ticket.ID == 0 {
		t.Fatalf("expected generated id")
	}

	got, err := repo.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected ticket, got nil")
	}
	if got.TicketNumber != ticket.TicketNumber || got.Subject != "Equipaje perdido" {
		t.Fatalf("unexpected ticket %+v", got)
	}
	if got.ReservationNumber != "AB1234" || got.EmailMessageID != "<msg-1@zoho.com>" {
		t.Fatalf("nullable columns lost: %+v", got)
	}
	if got.Category != models.CategoryBaggage || got.Priority != models.PriorityUrgent {
		t.Fatalf("enum columns lost: %+v", got)
	}
	if got.Metadata["source_ip"] != "10.0.0.1" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestTicketLookupsReturnNilOnMiss(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	for name, find := range map[string]func() (*models.Ticket, error){
		"GetByID":              func() (*models.Ticket, error) { return repo.GetByID(ctx, 12345) },
		"GetByTicketNumber":    func() (*models.Ticket, error) { return repo.GetByTicketNumber(ctx, "TK-0000-000000") },
		"FindByEmailMessageID": func() (*models.Ticket, error) { return repo.FindByEmailMessageID(ctx, "<nope@x>") },
		"FindByThreadID":       func() (*models.Ticket, error) { return repo.FindByThreadID(ctx, "email_none") },
	} {
		got, err := find()
		if err != nil {
			t.Fatalf("%s returned error: %v", name, err)
		}
		if got != nil {
			t.Fatalf("%s expected nil on miss, got %+v", name, got)
		}
	}
}

func TestTicketFindByEmailMessageID(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, func(tk *models.Ticket) {
		tk.EmailMessageID = "<hit@zoho.com>"
	})
	got, err := repo.FindByEmailMessageID(ctx, "<hit@zoho.com>")
	if err != nil {
		t.Fatalf("FindByEmailMessageID returned error: %v", err)
	}
	if got == nil || got.ID != ticket.ID {
		t.Fatalf("expected ticket %d, got %+v", ticket.ID, got)
	}
}

func TestTicketFindNewestBySubjectLike(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	older := seedTicket(t, db, func(tk *models.Ticket) {
		tk.Subject = "Reembolso vuelo cancelado"
	})
	time.Sleep(5 * time.Millisecond)
	newer := seedTicket(t, db, func(tk *models.Ticket) {
		tk.Subject = "Otra consulta sobre reembolso vuelo"
	})

	got, err := repo.FindNewestBySubjectLike(ctx, "reembolso vuelo")
	if err != nil {
		t.Fatalf("FindNewestBySubjectLike returned error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a match")
	}
	if got.ID != newer.ID {
		t.Fatalf("expected newest ticket %d, got %d (older is %d)", newer.ID, got.ID, older.ID)
	}
}

func TestTicketUpdateStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, nil)
	if err := repo.UpdateStatus(ctx, ticket.ID, models.StatusResolved); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	got, err := repo.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Status != models.StatusResolved {
		t.Fatalf("expected resolved status, got %s", got.Status)
	}
}

func TestTicketDuplicateMessageIDIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	first := seedTicket(t, db, func(tk *models.Ticket) {
		tk.EmailMessageID = "<dup@zoho.com>"
	})
	dup := &models.Ticket{
		TicketNumber:   "TK-2026-999999",
		CustomerID:     first.CustomerID,
		CreatedBy:      first.CreatedBy,
		Subject:        "duplicado",
		Description:    "x",
		Source:         models.SourceEmail,
		EmailMessageID: "<dup@zoho.com>",
	}
	err := repo.Create(ctx, dup)
	if err == nil {
		t.Fatalf("expected duplicate message id to fail")
	}
	if !database.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation classification, got %v", err)
	}
}
