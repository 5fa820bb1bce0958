package groupproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// GroupAttributeBlob is the plaintext inside encrypted group attributes
// (title, disappearing-message timer). Exactly one field is set; pointers
// keep "absent" distinguishable from "present but empty".
type GroupAttributeBlob struct {
	Title                        *string // 1
	Avatar                       []byte  // 2
	DisappearingMessagesDuration *uint32 // 3
}

func (m *GroupAttributeBlob) Marshal() []byte {
	var b []byte
	if m.Title != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, *m.Title)
	}
	b = appendBytesField(b, 2, m.Avatar)
	if m.DisappearingMessagesDuration != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*m.DisappearingMessagesDuration))
	}
	return b
}

func (m *GroupAttributeBlob) Unmarshal(b []byte) error {
	*m = GroupAttributeBlob{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			s := string(v)
			m.Title = &s
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.Avatar = v
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			d := uint32(v)
			m.DisappearingMessagesDuration = &d
			b = b[n:]
		default:
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}

// Member is a full group member on the wire. UserID and ProfileKey are
// ciphertexts under the group secret params; Presentation, when set, is the
// credential presentation the entry was built from.
type Member struct {
	UserID           []byte // 1
	Role             Role   // 2
	ProfileKey       []byte // 3
	Presentation     []byte // 4
	JoinedAtRevision uint32 // 5
}

func (m *Member) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.UserID)
	b = appendVarintField(b, 2, uint64(m.Role))
	b = appendBytesField(b, 3, m.ProfileKey)
	b = appendBytesField(b, 4, m.Presentation)
	b = appendVarintField(b, 5, uint64(m.JoinedAtRevision))
	return b
}

func (m *Member) Unmarshal(b []byte) error {
	*m = Member{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.UserID = v
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.Role = Role(v)
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.ProfileKey = v
			b = b[n:]
		case num == 4 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.Presentation = v
			b = b[n:]
		case num == 5 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.JoinedAtRevision = uint32(v)
			b = b[n:]
		default:
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}

// PendingMember is an invited-but-not-joined member. Only the inviter knows
// the invitee's profile key, so the embedded Member carries the service id
// ciphertext alone.
type PendingMember struct {
	Member        *Member // 1
	AddedByUserID []byte  // 2
	Timestamp     uint64  // 3
}

func (m *PendingMember) Marshal() []byte {
	var b []byte
	if m.Member != nil {
		b = appendMessageField(b, 1, m.Member)
	}
	b = appendBytesField(b, 2, m.AddedByUserID)
	b = appendVarintField(b, 3, m.Timestamp)
	return b
}

func (m *PendingMember) Unmarshal(b []byte) error {
	*m = PendingMember{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.Member = new(Member)
			if err := m.Member.Unmarshal(v); err != nil {
				return err
			}
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.AddedByUserID = v
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.Timestamp = v
			b = b[n:]
		default:
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}

// AccessControl holds the group's modification policies.
type AccessControl struct {
	Attributes AccessRequired // 1
	Members    AccessRequired // 2
}

func (m *AccessControl) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.Attributes))
	b = appendVarintField(b, 2, uint64(m.Members))
	return b
}

func (m *AccessControl) Unmarshal(b []byte) error {
	*m = AccessControl{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.Attributes = AccessRequired(v)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.Members = AccessRequired(v)
			b = b[n:]
		default:
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}

// Group is the encrypted wire representation of a group's full state.
type Group struct {
	PublicKey                 []byte           // 1
	Title                     []byte           // 2, encrypted GroupAttributeBlob
	Avatar                    string           // 3, CDN reference, not encrypted here
	DisappearingMessagesTimer []byte           // 4, encrypted GroupAttributeBlob
	AccessControl             *AccessControl   // 5
	Revision                  uint32           // 6
	Members                   []*Member        // 7
	PendingMembers            []*PendingMember // 8
}

func (m *Group) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.PublicKey)
	b = appendBytesField(b, 2, m.Title)
	b = appendStringField(b, 3, m.Avatar)
	b = appendBytesField(b, 4, m.DisappearingMessagesTimer)
	if m.AccessControl != nil {
		b = appendMessageField(b, 5, m.AccessControl)
	}
	b = appendVarintField(b, 6, uint64(m.Revision))
	for _, member := range m.Members {
		b = appendMessageField(b, 7, member)
	}
	for _, pending := range m.PendingMembers {
		b = appendMessageField(b, 8, pending)
	}
	return b
}

func (m *Group) Unmarshal(b []byte) error {
	*m = Group{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.PublicKey = v
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.Title = v
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.Avatar = string(v)
			b = b[n:]
		case num == 4 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.DisappearingMessagesTimer = v
			b = b[n:]
		case num == 5 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.AccessControl = new(AccessControl)
			if err := m.AccessControl.Unmarshal(v); err != nil {
				return err
			}
			b = b[n:]
		case num == 6 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.Revision = uint32(v)
			b = b[n:]
		case num == 7 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			member := new(Member)
			if err := member.Unmarshal(v); err != nil {
				return err
			}
			m.Members = append(m.Members, member)
			b = b[n:]
		case num == 8 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			pending := new(PendingMember)
			if err := pending.Unmarshal(v); err != nil {
				return err
			}
			m.PendingMembers = append(m.PendingMembers, pending)
			b = b[n:]
		default:
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}

// GroupResponse wraps a fetched Group.
type GroupResponse struct {
	Group *Group // 1
}

func (m *GroupResponse) Marshal() []byte {
	var b []byte
	if m.Group != nil {
		b = appendMessageField(b, 1, m.Group)
	}
	return b
}

func (m *GroupResponse) Unmarshal(b []byte) error {
	*m = GroupResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.Group = new(Group)
			if err := m.Group.Unmarshal(v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
		}
	}
	return nil
}
