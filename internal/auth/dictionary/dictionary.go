// Package dictionary is a sqlite+bcrypt backed auth.Provider, adapted from
// Pyr33x-goqtt's internal/auth/auth.go (which queried a "secret" column and
// verified it with pkg/hash's bcrypt wrapper). It authenticates by
// username/password and authorizes every publish/subscribe once
// authenticated, leaving per-topic policy to the roleacl provider.
package dictionary

import (
	"database/sql"
	"errors"

	"github.com/edgebroker/goqttd/internal/hash"

	_ "github.com/mattn/go-sqlite3"
)

// Provider authenticates clients against a sqlite users table of
// (username, secret) where secret is a bcrypt hash.
type Provider struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// the users table exists.
func Open(path string) (*Provider, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		secret   TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &Provider{db: db}, nil
}

// New wraps an already-open database handle.
func New(db *sql.DB) *Provider {
	return &Provider{db: db}
}

// AddUser inserts or replaces a user's bcrypt-hashed password.
func (p *Provider) AddUser(username, password string) error {
	hashed, err := hash.HashPasswd(password, hash.DefaultCost)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT OR REPLACE INTO users (username, secret) VALUES (?, ?)`, username, hashed)
	return err
}

// Authenticate verifies username/password against the stored bcrypt hash.
// clientID is unused by the dictionary provider; it authenticates purely on
// credentials.
func (p *Provider) Authenticate(_, username, password string) bool {
	if username == "" {
		return false
	}
	var secret string
	err := p.db.QueryRow(`SELECT secret FROM users WHERE username = ?`, username).Scan(&secret)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false
		}
		return false
	}
	return hash.VerifyPasswd(secret, password)
}

// AuthorizePublish grants every publish once a client has authenticated;
// finer-grained topic policy is the roleacl provider's job.
func (p *Provider) AuthorizePublish(_, _ string) bool { return true }

// AuthorizeSubscribe grants QoS 2 on every filter once authenticated.
func (p *Provider) AuthorizeSubscribe(_, _ string) int { return 2 }

// Close releases the underlying database handle.
func (p *Provider) Close() error { return p.db.Close() }
