package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"

	"github.com/target/oidc-gate/internal/migrate"
)

// TestDBConfig locates the integration-test Postgres instance.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_* overrides. The defaults match the
// docker-compose test profile, which publishes Postgres on 55432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "oidcgate"),
		Password: envOr("TEST_DB_PASSWORD", "oidcgate"),
		DBName:   envOr("TEST_DB_NAME", "oidcgate"),
	}
}

// DSN renders the config as a pgx URL. A non-empty schema is placed first on
// the search_path.
func (c TestDBConfig) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", envOr("DB_SSL_MODE", "disable"))
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func openPing(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SkipIfNoTestDB skips the test when the test database cannot be reached.
func SkipIfNoTestDB(t TB) {
	t.Helper()
	db, err := openPing(DefaultTestDBConfig().DSN(""), 2*time.Second)
	if err != nil {
		unavailable(t, truthy("TEST_REQUIRE_DB"), "test database", err)
		return
	}
	_ = db.Close()
}

// WithAutoDB runs fn against a migrated database. With TEST_DB_EPHEMERAL set
// each call gets a throwaway schema; otherwise the shared database is wiped
// before and after fn.
func WithAutoDB(t TB, fn func(*sql.DB)) {
	t.Helper()
	SkipIfNoTestDB(t)
	if truthy("TEST_DB_EPHEMERAL") {
		fn(ephemeralDB(t))
		return
	}
	fn(sharedDB(t))
}

// tablesInDeleteOrder lists every table the migrations create, children first.
var tablesInDeleteOrder = []string{"comments", "post_access", "posts", "native_users", "internals"}

func sharedDB(t TB) *sql.DB {
	t.Helper()
	db, err := openPing(DefaultTestDBConfig().DSN(""), 5*time.Second)
	if err != nil {
		t.Fatal("connect test database (docker compose --profile test up -d):", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		t.Fatal("migrate test database:", err)
	}
	truncate(t, db)
	t.Cleanup(func() {
		truncate(t, db)
		if err := db.Close(); err != nil {
			t.Logf("close test database: %v", err)
		}
	})
	return db
}

func truncate(t TB, db *sql.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, table := range tablesInDeleteOrder {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clear %s: %v", table, err)
		}
	}
}

func ephemeralDB(t TB) *sql.DB {
	t.Helper()
	cfg := DefaultTestDBConfig()
	admin, err := openPing(cfg.DSN(""), 5*time.Second)
	if err != nil {
		t.Fatal("connect admin database:", err)
	}

	schema := schemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db, err := openPing(cfg.DSN(schema), 10*time.Second)
	if err != nil {
		dropSchema(t, admin, schema)
		t.Fatal("connect schema database:", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	t.Logf("using ephemeral schema %s", schema)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close schema database: %v", err)
		}
		dropSchema(t, admin, schema)
	})

	if err := migrate.Run(ctx, db); err != nil {
		t.Fatal("migrate ephemeral schema:", err)
	}
	return db
}

func dropSchema(t TB, admin *sql.DB, schema string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
		t.Logf("drop schema %s: %v", schema, err)
	}
	if err := admin.Close(); err != nil {
		t.Logf("close admin database: %v", err)
	}
}

func schemaName() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("og_%d", time.Now().UnixNano())
	}
	return "og_" + hex.EncodeToString(b)
}
