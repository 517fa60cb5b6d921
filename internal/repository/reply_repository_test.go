package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

func TestReplyCreateAndFind(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketReplyRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, nil)
	reply := &models.TicketReply{
		TicketID:          ticket.ID,
		UserID:            ticket.CustomerID,
		Message:           "sigue sin aparecer",
		IsCustomerVisible: true,
		EmailMessageID:    "<reply-1@zoho.com>",
		Attachments: []models.StoredAttachment{
			{Filename: "foto.jpg", StoragePath: "ticket_attachments/x_foto.jpg", Mime: "image/jpeg", SizeBytes: 9},
		},
	}
	if err := repo.Create(ctx, reply); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if reply.ID == 0 {
		t.Fatalf("expected generated id")
	}
	if reply.Type != models.ReplyTypeReply {
		t.Fatalf("expected default reply type, got %s", reply.Type)
	}

	got, err := repo.FindByEmailMessageID(ctx, "<reply-1@zoho.com>")
	if err != nil {
		t.Fatalf("FindByEmailMessageID returned error: %v", err)
	}
	if got == nil || got.ID != reply.ID || got.TicketID != ticket.ID {
		t.Fatalf("unexpected reply %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "foto.jpg" {
		t.Fatalf("attachment metadata lost: %+v", got.Attachments)
	}

	miss, err := repo.FindByEmailMessageID(ctx, "<nope@x>")
	if err != nil {
		t.Fatalf("FindByEmailMessageID returned error: %v", err)
	}
	if miss != nil {
		t.Fatalf("expected nil on miss, got %+v", miss)
	}
}

func TestReplyListByTicketOrdered(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketReplyRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, nil)
	for i, msg := range []string{"primera", "segunda", "tercera"} {
		reply := &models.TicketReply{
			TicketID:       ticket.ID,
			UserID:         ticket.CustomerID,
			Message:        msg,
			EmailMessageID: "<list-" + msg + "@x>",
		}
		if err := repo.Create(ctx, reply); err != nil {
			t.Fatalf("Create %d returned error: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	replies, err := repo.ListByTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ListByTicket returned error: %v", err)
	}
	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(replies))
	}
	for i, want := range []string{"primera", "segunda", "tercera"} {
		if replies[i].Message != want {
			t.Fatalf("unexpected order: %v", replies)
		}
	}
}

func TestReplyDuplicateMessageIDIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	repo := NewTicketReplyRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, nil)
	first := &models.TicketReply{TicketID: ticket.ID, UserID: 1, Message: "a", EmailMessageID: "<dup-r@x>"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	dup := &models.TicketReply{TicketID: ticket.ID, UserID: 1, Message: "b", EmailMessageID: "<dup-r@x>"}
	err := repo.Create(ctx, dup)
	if err == nil {
		t.Fatalf("expected duplicate message id to fail")
	}
	if !database.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation classification, got %v", err)
	}
}
