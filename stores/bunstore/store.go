// Package bunstore keeps refresh token ids in a SQL database through bun.
package bunstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-jwtauth"
)

// RefreshToken is the row recorded for every issued refresh token.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	TokenID   string     `bun:"token_id,pk" json:"token_id"`
	Subject   string     `bun:"subject,notnull" json:"subject"`
	ExpiresAt int64      `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Store is an auth.RefreshStore backed by a bun database.
type Store struct {
	db  bun.IDB
	now func() time.Time
}

var _ auth.RefreshStore = (*Store)(nil)

// New returns a store using db. Call Migrate once before use.
func New(db bun.IDB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock overrides the time source used to decide expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Migrate creates the refresh_tokens table and its subject index.
func Migrate(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*RefreshToken)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := db.NewCreateIndex().
		Model((*RefreshToken)(nil)).
		Index("idx_refresh_tokens_subject").
		Column("subject").
		IfNotExists().
		Exec(ctx)
	return err
}

// Store records tokenID for subject until expiresAt. Storing an id again
// replaces its subject and expiry.
func (s *Store) Store(ctx context.Context, subject, tokenID string, expiresAt time.Time) error {
	if !s.now().Before(expiresAt) {
		return nil
	}

	row := &RefreshToken{
		TokenID:   tokenID,
		Subject:   subject,
		ExpiresAt: expiresAt.Unix(),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (token_id) DO UPDATE").
		Set("subject = EXCLUDED.subject").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return err
}

// Exists reports whether tokenID is stored for subject and not yet expired.
func (s *Store) Exists(ctx context.Context, subject, tokenID string) (bool, error) {
	return s.db.NewSelect().
		Model((*RefreshToken)(nil)).
		Where("token_id = ?", tokenID).
		Where("subject = ?", subject).
		Where("expires_at > ?", s.now().Unix()).
		Exists(ctx)
}

// Revoke deletes tokenID when it belongs to subject.
func (s *Store) Revoke(ctx context.Context, subject, tokenID string) error {
	_, err := s.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("token_id = ?", tokenID).
		Where("subject = ?", subject).
		Exec(ctx)
	return err
}

// RevokeSubject deletes every refresh token issued to subject.
func (s *Store) RevokeSubject(ctx context.Context, subject string) (int, error) {
	res, err := s.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("subject = ?", subject).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PurgeExpired deletes the rows whose token has expired.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at <= ?", s.now().Unix()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
