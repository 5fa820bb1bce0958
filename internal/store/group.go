package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gwillem/groupsync-go/internal/groupsv2"
)

// Group is a locally known group: its master key, the last fully decrypted
// state, and whether this client is still a member.
type Group struct {
	GroupID   string // hex-encoded GroupIdentifier (32 bytes)
	MasterKey []byte // 32-byte master key
	Title     string // cached title (may be empty)
	Revision  uint32 // revision of State
	Active    bool   // false once the server reports us removed
	State     *groupsv2.DecryptedGroup
	UpdatedAt time.Time
}

// CreateGroup inserts a newly discovered group. Fails if the group id is
// already present; callers decide between create and update with GetGroup.
func (s *Store) CreateGroup(g *Group) error {
	state, err := marshalState(g.State)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO groups (group_id, master_key, title, revision, active, state, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.GroupID, g.MasterKey, g.Title, g.Revision, g.Active, state, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: create group: %w", err)
	}
	return nil
}

// UpdateGroup replaces the stored state of a known group. Fails if the
// group does not exist.
func (s *Store) UpdateGroup(g *Group) error {
	state, err := marshalState(g.State)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE groups SET master_key = ?, title = ?, revision = ?, active = ?, state = ?, updated_at = ?
		 WHERE group_id = ?`,
		g.MasterKey, g.Title, g.Revision, g.Active, state, time.Now().Unix(), g.GroupID,
	)
	if err != nil {
		return fmt.Errorf("store: update group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update group: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: update group: no group %s", g.GroupID)
	}
	return nil
}

func marshalState(state *groupsv2.DecryptedGroup) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("store: marshal group state: %w", err)
	}
	return b, nil
}

// GetGroup retrieves a group by its group ID (hex-encoded GroupIdentifier),
// or nil if not found.
func (s *Store) GetGroup(groupID string) (*Group, error) {
	return s.scanGroup(s.db.QueryRow(
		`SELECT group_id, master_key, title, revision, active, state, updated_at
		 FROM groups WHERE group_id = ?`, groupID))
}

// GetGroupByMasterKey retrieves a group by its master key, or nil if not found.
func (s *Store) GetGroupByMasterKey(masterKey []byte) (*Group, error) {
	return s.scanGroup(s.db.QueryRow(
		`SELECT group_id, master_key, title, revision, active, state, updated_at
		 FROM groups WHERE master_key = ?`, masterKey))
}

func (s *Store) scanGroup(row *sql.Row) (*Group, error) {
	var g Group
	var state []byte
	var updatedAt int64
	err := row.Scan(&g.GroupID, &g.MasterKey, &g.Title, &g.Revision, &g.Active, &state, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get group: %w", err)
	}
	if len(state) > 0 {
		g.State = &groupsv2.DecryptedGroup{}
		if err := json.Unmarshal(state, g.State); err != nil {
			return nil, fmt.Errorf("store: unmarshal group state: %w", err)
		}
	}
	g.UpdatedAt = time.Unix(updatedAt, 0)
	return &g, nil
}

// GetAllGroups retrieves all stored groups, active first.
func (s *Store) GetAllGroups() ([]*Group, error) {
	rows, err := s.db.Query(
		`SELECT group_id, master_key, title, revision, active, state, updated_at
		 FROM groups ORDER BY active DESC, title, group_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		var g Group
		var state []byte
		var updatedAt int64
		if err := rows.Scan(&g.GroupID, &g.MasterKey, &g.Title, &g.Revision, &g.Active, &state, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan group: %w", err)
		}
		if len(state) > 0 {
			g.State = &groupsv2.DecryptedGroup{}
			if err := json.Unmarshal(state, g.State); err != nil {
				return nil, fmt.Errorf("store: unmarshal group state: %w", err)
			}
		}
		g.UpdatedAt = time.Unix(updatedAt, 0)
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// SetGroupActive flips the membership flag, used when the server reports
// this client is no longer a member.
func (s *Store) SetGroupActive(groupID string, active bool) error {
	_, err := s.db.Exec(
		"UPDATE groups SET active = ?, updated_at = ? WHERE group_id = ?",
		active, time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("store: set group active: %w", err)
	}
	return nil
}
