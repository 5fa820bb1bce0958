package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gwillem/groupsync-go/internal/groupsv2"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// GroupUpdateMessage is one applied group transition, kept so the history
// of a conversation can render "alice changed the title" style lines.
type GroupUpdateMessage struct {
	ID        int64
	GroupID   string
	Revision  uint32
	Editor    string // empty when the editor was not decryptable
	Change    *groupsv2.DecryptedGroupChange
	CreatedAt time.Time
}

// InsertGroupUpdateMessage records one applied transition. A nil change
// (the first snapshot of a previously unknown group) is stored with an
// empty change body.
func (s *Store) InsertGroupUpdateMessage(groupID string, revision uint32, change *groupsv2.DecryptedGroupChange) error {
	var editor string
	var body []byte
	if change != nil {
		if change.Editor != zkgroup.UnknownUUID {
			editor = change.Editor.String()
		}
		var err error
		body, err = json.Marshal(change)
		if err != nil {
			return fmt.Errorf("store: marshal group change: %w", err)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO group_update_message (group_id, revision, editor, change, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		groupID, revision, editor, body, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert group update message: %w", err)
	}
	return nil
}

// GetGroupUpdateMessages returns all update messages for a group in
// revision order.
func (s *Store) GetGroupUpdateMessages(groupID string) ([]*GroupUpdateMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, group_id, revision, editor, change, created_at
		 FROM group_update_message WHERE group_id = ? ORDER BY revision, id`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("store: list group update messages: %w", err)
	}
	defer rows.Close()

	var messages []*GroupUpdateMessage
	for rows.Next() {
		var m GroupUpdateMessage
		var body []byte
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Revision, &m.Editor, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan group update message: %w", err)
		}
		if len(body) > 0 {
			m.Change = &groupsv2.DecryptedGroupChange{}
			if err := json.Unmarshal(body, m.Change); err != nil {
				return nil, fmt.Errorf("store: unmarshal group change: %w", err)
			}
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
