package store

import (
	"bytes"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/gwillem/groupsync-go/internal/groupsv2"
)

// Recipient is one known user and their last persisted profile key.
type Recipient struct {
	UUID       string
	ProfileKey []byte // nil when no key is known yet
}

// GetRecipient returns the recipient for the given uuid, or nil if unknown.
func (s *Store) GetRecipient(id string) (*Recipient, error) {
	var r Recipient
	err := s.db.QueryRow(
		"SELECT uuid, profile_key FROM recipient WHERE uuid = ?", id,
	).Scan(&r.UUID, &r.ProfileKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get recipient: %w", err)
	}
	return &r, nil
}

// GetOrInsertRecipient ensures a recipient row exists and returns it.
func (s *Store) GetOrInsertRecipient(id string) (*Recipient, error) {
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO recipient (uuid) VALUES (?)", id,
	); err != nil {
		return nil, fmt.Errorf("store: insert recipient: %w", err)
	}
	return s.GetRecipient(id)
}

// ListRecipients returns every known recipient ordered by uuid.
func (s *Store) ListRecipients() ([]*Recipient, error) {
	rows, err := s.db.Query("SELECT uuid, profile_key FROM recipient ORDER BY uuid")
	if err != nil {
		return nil, fmt.Errorf("store: list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UUID, &r.ProfileKey); err != nil {
			return nil, fmt.Errorf("store: scan recipient: %w", err)
		}
		recipients = append(recipients, &r)
	}
	return recipients, rows.Err()
}

// PersistProfileKeySet writes harvested profile keys to the recipient table
// and returns the uuids whose stored key actually changed. Authoritative
// keys overwrite whatever is stored; non-authoritative keys only fill rows
// that have no key yet.
func (s *Store) PersistProfileKeySet(set *groupsv2.ProfileKeySet) ([]uuid.UUID, error) {
	if set.IsEmpty() {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var updated []uuid.UUID
	persist := func(id uuid.UUID, key [32]byte, overwrite bool) error {
		var existing []byte
		err := tx.QueryRow("SELECT profile_key FROM recipient WHERE uuid = ?", id.String()).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			// fall through to insert
		case err != nil:
			return fmt.Errorf("store: read recipient key: %w", err)
		case bytes.Equal(existing, key[:]):
			return nil
		case len(existing) > 0 && !overwrite:
			return nil
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO recipient (uuid, profile_key) VALUES (?, ?)",
			id.String(), key[:],
		); err != nil {
			return fmt.Errorf("store: persist recipient key: %w", err)
		}
		updated = append(updated, id)
		return nil
	}

	for id, key := range set.Authoritative() {
		if err := persist(id, key, true); err != nil {
			return nil, err
		}
	}
	for id, key := range set.NonAuthoritative() {
		if err := persist(id, key, false); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return updated, nil
}
