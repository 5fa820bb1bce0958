package groupsv2

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// DecryptedMember is a full group member in plaintext.
type DecryptedMember struct {
	UUID             uuid.UUID
	Role             groupproto.Role
	ProfileKey       zkgroup.ProfileKey // zero value when unknown
	JoinedAtRevision uint32
}

// DecryptedPendingMember is an invited member. UUID is UnknownUUID when the
// invite ciphertext is not decryptable by this client; UUIDCipher keeps the
// original ciphertext so the entry can still be matched later.
type DecryptedPendingMember struct {
	UUID        uuid.UUID
	AddedByUUID uuid.UUID
	UUIDCipher  []byte
	Timestamp   uint64
}

// DecryptedGroup is the plaintext projection of a group's full state.
// Values returned by this package are snapshots: callers must never mutate
// them in place.
type DecryptedGroup struct {
	Title                     string
	Avatar                    string
	DisappearingMessagesTimer uint32 // seconds, 0 = off
	AttributesAccess          groupproto.AccessRequired
	MembersAccess             groupproto.AccessRequired
	Revision                  uint32
	Members                   []DecryptedMember
	PendingMembers            []DecryptedPendingMember
}

// FindMember returns the full member with the given uuid.
func (g *DecryptedGroup) FindMember(id uuid.UUID) (DecryptedMember, bool) {
	for _, m := range g.Members {
		if m.UUID == id {
			return m, true
		}
	}
	return DecryptedMember{}, false
}

// FindPendingMember returns the pending member with the given uuid.
func (g *DecryptedGroup) FindPendingMember(id uuid.UUID) (DecryptedPendingMember, bool) {
	for _, p := range g.PendingMembers {
		if p.UUID == id {
			return p, true
		}
	}
	return DecryptedPendingMember{}, false
}

// Equal reports whether two states are identical, including member order.
func (g *DecryptedGroup) Equal(other *DecryptedGroup) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Title != other.Title ||
		g.Avatar != other.Avatar ||
		g.DisappearingMessagesTimer != other.DisappearingMessagesTimer ||
		g.AttributesAccess != other.AttributesAccess ||
		g.MembersAccess != other.MembersAccess ||
		g.Revision != other.Revision ||
		len(g.Members) != len(other.Members) ||
		len(g.PendingMembers) != len(other.PendingMembers) {
		return false
	}
	for i := range g.Members {
		if g.Members[i] != other.Members[i] {
			return false
		}
	}
	for i := range g.PendingMembers {
		a, b := g.PendingMembers[i], other.PendingMembers[i]
		if a.UUID != b.UUID || a.AddedByUUID != b.AddedByUUID ||
			a.Timestamp != b.Timestamp || !bytes.Equal(a.UUIDCipher, b.UUIDCipher) {
			return false
		}
	}
	return true
}

// clone deep-copies the state so apply can build a new snapshot without
// touching the input.
func (g *DecryptedGroup) clone() *DecryptedGroup {
	out := *g
	out.Members = make([]DecryptedMember, len(g.Members))
	copy(out.Members, g.Members)
	out.PendingMembers = make([]DecryptedPendingMember, len(g.PendingMembers))
	for i, p := range g.PendingMembers {
		p.UUIDCipher = bytes.Clone(p.UUIDCipher)
		out.PendingMembers[i] = p
	}
	return &out
}

// validate checks the member-list invariants: uuids unique across the full
// member list, and no uuid both full and pending.
func (g *DecryptedGroup) validate() error {
	full := make(map[uuid.UUID]struct{}, len(g.Members))
	for _, m := range g.Members {
		if _, dup := full[m.UUID]; dup {
			return errDuplicateMember(m.UUID)
		}
		full[m.UUID] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(g.PendingMembers))
	for _, p := range g.PendingMembers {
		if p.UUID == zkgroup.UnknownUUID {
			continue // undecryptable invites cannot be cross-checked
		}
		if _, isFull := full[p.UUID]; isFull {
			return errMemberBothFullAndPending(p.UUID)
		}
		if _, dup := seen[p.UUID]; dup {
			return errDuplicateMember(p.UUID)
		}
		seen[p.UUID] = struct{}{}
	}
	return nil
}

// DecryptedModifyMemberRole is a role change for one member.
type DecryptedModifyMemberRole struct {
	UUID uuid.UUID
	Role groupproto.Role
}

// DecryptedProfileKeyUpdate is a profile key change for one member.
type DecryptedProfileKeyUpdate struct {
	UUID       uuid.UUID
	ProfileKey zkgroup.ProfileKey
}

// DecryptedGroupChange is the structured delta between two revisions,
// either decrypted from a signed change or reconstructed from two states.
// Optional attribute fields are pointers: nil means "unchanged", a non-nil
// pointer to an empty value means "explicitly set to empty".
type DecryptedGroupChange struct {
	Editor   uuid.UUID // UnknownUUID when the editor is not decryptable
	Revision uint32

	NewMembers            []DecryptedMember
	DeleteMembers         []uuid.UUID
	ModifyMemberRoles     []DecryptedModifyMemberRole
	ModifiedProfileKeys   []DecryptedProfileKeyUpdate
	NewPendingMembers     []DecryptedPendingMember
	DeletePendingMembers  []uuid.UUID
	PromotePendingMembers []DecryptedMember

	NewTitle                     *string
	NewAvatar                    *string
	NewDisappearingMessagesTimer *uint32
	NewAttributesAccess          *groupproto.AccessRequired
	NewMembersAccess             *groupproto.AccessRequired
}

// IsEmpty reports whether the change carries no modifications at all.
func (c *DecryptedGroupChange) IsEmpty() bool {
	return len(c.NewMembers) == 0 &&
		len(c.DeleteMembers) == 0 &&
		len(c.ModifyMemberRoles) == 0 &&
		len(c.ModifiedProfileKeys) == 0 &&
		len(c.NewPendingMembers) == 0 &&
		len(c.DeletePendingMembers) == 0 &&
		len(c.PromotePendingMembers) == 0 &&
		c.NewTitle == nil &&
		c.NewAvatar == nil &&
		c.NewDisappearingMessagesTimer == nil &&
		c.NewAttributesAccess == nil &&
		c.NewMembersAccess == nil
}
