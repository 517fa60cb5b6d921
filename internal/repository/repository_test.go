package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rodrigofdzr/TARdesk/internal/config"
	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

var seedSeq atomic.Int64

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite3",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *database.DB, email string) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO users (name, email, role, is_active) VALUES (?, ?, 'customer_service', 1)`,
		"Agent "+email, email,
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seed user id: %v", err)
	}
	return id
}

func seedCustomer(t *testing.T, db *database.DB, email string) *models.Customer {
	t.Helper()
	customer := &models.Customer{FirstName: "Ana", LastName: "García", Email: email}
	if err := NewCustomerRepository(db).Create(context.Background(), customer); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

func seedTicket(t *testing.T, db *database.DB, mutate func(*models.Ticket)) *models.Ticket {
	t.Helper()
	seq := seedSeq.Add(1)
	customer := seedCustomer(t, db, fmt.Sprintf("seed-%d@example.com", seq))
	agent := seedUser(t, db, fmt.Sprintf("agent-%d@tardesk.com", seq))
	ticket := &models.Ticket{
		TicketNumber: fmt.Sprintf("TK-2026-%06d", seq),
		CustomerID:   customer.ID,
		CreatedBy:    agent,
		Subject:      "Equipaje perdido",
		Description:  "descripción",
		Category:     models.CategoryBaggage,
		Priority:     models.PriorityUrgent,
		Status:       models.StatusOpen,
		Source:       models.SourceEmail,
	}
	if mutate != nil {
		mutate(ticket)
	}
	if err := NewTicketRepository(db).Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}
