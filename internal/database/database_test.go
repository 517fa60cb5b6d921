package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/rodrigofdzr/TARdesk/internal/config"
)

func TestConvertPlaceholders(t *testing.T) {
	query := "SELECT id FROM tickets WHERE subject ILIKE $1 AND status = $2"

	pg := Wrap(nil, "postgres")
	if got := pg.ConvertPlaceholders(query); got != query {
		t.Fatalf("postgres query rewritten: %q", got)
	}

	lite := Wrap(nil, "sqlite3")
	want := "SELECT id FROM tickets WHERE subject LIKE ? AND status = ?"
	if got := lite.ConvertPlaceholders(query); got != want {
		t.Fatalf("sqlite3 conversion = %q, want %q", got, want)
	}

	my := Wrap(nil, "mysql")
	if got := my.ConvertPlaceholders("INSERT INTO t (a, b) VALUES ($1, $2)"); got != "INSERT INTO t (a, b) VALUES (?, ?)" {
		t.Fatalf("mysql conversion = %q", got)
	}
}

func TestSupportsReturning(t *testing.T) {
	if !Wrap(nil, "postgres").SupportsReturning() {
		t.Fatal("postgres should support RETURNING")
	}
	if Wrap(nil, "sqlite3").SupportsReturning() {
		t.Fatal("sqlite3 should not report RETURNING support")
	}
	if Wrap(nil, "mysql").SupportsReturning() {
		t.Fatal("mysql should not report RETURNING support")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres duplicate", &pq.Error{Code: "23505"}, true},
		{"postgres other", &pq.Error{Code: "42703"}, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", &mysql.MySQLError{Number: 1146}, false},
		{"sqlite duplicate", sqlite3.Error{Code: sqlite3.ErrConstraint}, true},
		{"sqlite other", sqlite3.Error{Code: sqlite3.ErrBusy}, false},
		{"wrapped postgres", fmt.Errorf("create ticket: %w", &pq.Error{Code: "23505"}), true},
		{"string fallback", errors.New("UNIQUE constraint failed: tickets.email_message_id"), true},
		{"mysql string fallback", errors.New("Error 1062: Duplicate entry 'x' for key 'y'"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: IsUniqueViolation = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBuildDSN(t *testing.T) {
	pg, err := buildDSN(config.DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432, User: "tardesk",
		Password: "secret", Name: "helpdesk", SSLMode: "disable",
	})
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}
	if pg != "host=db port=5432 user=tardesk password=secret dbname=helpdesk sslmode=disable" {
		t.Fatalf("postgres dsn = %q", pg)
	}

	my, err := buildDSN(config.DatabaseConfig{
		Driver: "mysql", Host: "db", Port: 3306, User: "tardesk",
		Password: "secret", Name: "helpdesk",
	})
	if err != nil {
		t.Fatalf("mysql dsn: %v", err)
	}
	if my != "tardesk:secret@tcp(db:3306)/helpdesk?parseTime=true" {
		t.Fatalf("mysql dsn = %q", my)
	}

	lite, err := buildDSN(config.DatabaseConfig{Driver: "sqlite3", Path: "/var/lib/tardesk.db"})
	if err != nil {
		t.Fatalf("sqlite dsn: %v", err)
	}
	if lite != "/var/lib/tardesk.db" {
		t.Fatalf("sqlite dsn = %q", lite)
	}

	if _, err := buildDSN(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
