package groupsv2

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// ProfileKeySet accumulates profile keys observed while processing group
// history, split by trust level. Authoritative keys were published by their
// own owner (the change editor updated their own key) and may overwrite
// local records; non-authoritative keys were merely seen in passing and
// only fill gaps.
//
// Built transiently per synchronization attempt, consumed once to update
// the recipient store, then discarded.
type ProfileKeySet struct {
	authoritative    map[uuid.UUID]zkgroup.ProfileKey
	nonAuthoritative map[uuid.UUID]zkgroup.ProfileKey
	logger           *zap.Logger
}

// NewProfileKeySet creates an empty set. logger may be nil.
func NewProfileKeySet(logger *zap.Logger) *ProfileKeySet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileKeySet{
		authoritative:    make(map[uuid.UUID]zkgroup.ProfileKey),
		nonAuthoritative: make(map[uuid.UUID]zkgroup.ProfileKey),
		logger:           logger,
	}
}

// AddKeysFromGroup records every member profile key in a state snapshot.
// Snapshots carry no editor, so everything is non-authoritative.
func (s *ProfileKeySet) AddKeysFromGroup(g *DecryptedGroup) {
	for _, m := range g.Members {
		s.put(m.UUID, m.ProfileKey, false)
	}
}

// AddKeysFromChange records profile keys revealed by a change. A key is
// authoritative if and only if its owner is the change's editor.
func (s *ProfileKeySet) AddKeysFromChange(c *DecryptedGroupChange) {
	for _, m := range c.NewMembers {
		s.put(m.UUID, m.ProfileKey, m.UUID == c.Editor)
	}
	for _, u := range c.ModifiedProfileKeys {
		s.put(u.UUID, u.ProfileKey, u.UUID == c.Editor)
	}
	for _, m := range c.PromotePendingMembers {
		s.put(m.UUID, m.ProfileKey, m.UUID == c.Editor)
	}
}

// put is the single insertion point enforcing the trust invariant: an
// authoritative key evicts any non-authoritative entry for the same uuid,
// and once a uuid is authoritative, later non-authoritative observations
// are discarded.
func (s *ProfileKeySet) put(id uuid.UUID, key zkgroup.ProfileKey, authoritative bool) {
	if id == zkgroup.UnknownUUID {
		return
	}
	if key.IsZero() {
		s.logger.Warn("skipping empty or malformed profile key", zap.String("uuid", id.String()))
		return
	}
	if authoritative {
		s.authoritative[id] = key
		delete(s.nonAuthoritative, id)
		return
	}
	if _, isAuthoritative := s.authoritative[id]; isAuthoritative {
		return
	}
	s.nonAuthoritative[id] = key
}

// Authoritative returns a copy of the authoritative map.
func (s *ProfileKeySet) Authoritative() map[uuid.UUID]zkgroup.ProfileKey {
	out := make(map[uuid.UUID]zkgroup.ProfileKey, len(s.authoritative))
	for id, key := range s.authoritative {
		out[id] = key
	}
	return out
}

// NonAuthoritative returns a copy of the non-authoritative map.
func (s *ProfileKeySet) NonAuthoritative() map[uuid.UUID]zkgroup.ProfileKey {
	out := make(map[uuid.UUID]zkgroup.ProfileKey, len(s.nonAuthoritative))
	for id, key := range s.nonAuthoritative {
		out[id] = key
	}
	return out
}

// IsEmpty reports whether no keys were harvested.
func (s *ProfileKeySet) IsEmpty() bool {
	return len(s.authoritative) == 0 && len(s.nonAuthoritative) == 0
}
