package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rodrigofdzr/TARdesk/internal/config"
)

// DB wraps a sql.DB with the driver it was opened with so queries written in
// PostgreSQL placeholder style can be converted where needed.
type DB struct {
	*sql.DB
	driver string
}

// Connect opens a database connection for the configured driver.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{DB: db, driver: cfg.Driver}, nil
}

// Wrap adopts an already opened connection (used by tests with sqlite3).
func Wrap(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver}
}

// Driver returns the driver name the connection was opened with.
func (d *DB) Driver() string { return d.driver }

func buildDSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	case "sqlite3":
		return cfg.Path, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// ConvertPlaceholders rewrites PostgreSQL-style $N placeholders for drivers
// that use ?. Queries are written once in PostgreSQL form.
func (d *DB) ConvertPlaceholders(query string) string {
	if d.driver == "postgres" {
		return query
	}
	for _, placeholder := range placeholderPattern.FindAllString(query, -1) {
		query = strings.Replace(query, placeholder, "?", 1)
	}
	query = strings.ReplaceAll(query, " ILIKE ", " LIKE ")
	return query
}

// SupportsReturning reports whether INSERT ... RETURNING id works on the
// active driver.
func (d *DB) SupportsReturning() bool {
	return d.driver == "postgres"
}
