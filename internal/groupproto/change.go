package groupproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// GroupChange is a signed change envelope. Actions holds the raw marshaled
// GroupChangeActions; the notary signature covers exactly those bytes, so
// they are kept opaque until the signature has been checked.
type GroupChange struct {
	Actions         []byte // 1
	ServerSignature []byte // 2
	ChangeEpoch     uint32 // 3
}

func (m *GroupChange) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.Actions)
	b = appendBytesField(b, 2, m.ServerSignature)
	b = appendVarintField(b, 3, uint64(m.ChangeEpoch))
	return b
}

func (m *GroupChange) Unmarshal(b []byte) error {
	*m = GroupChange{}
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
			m.Actions = v
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.ServerSignature = v
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.ChangeEpoch = uint32(v)
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

// Action submessages. One struct per action kind; the field order of
// GroupChangeActions is the order actions are applied in.

type AddMemberAction struct {
	Added *Member // 1
}

type DeleteMemberAction struct {
	DeletedUserID []byte // 1
}

type ModifyMemberRoleAction struct {
	UserID []byte // 1
	Role   Role   // 2
}

type ModifyMemberProfileKeyAction struct {
	Presentation []byte // 1
}

type AddPendingMemberAction struct {
	Added *PendingMember // 1
}

type DeletePendingMemberAction struct {
	DeletedUserID []byte // 1
}

type PromotePendingMemberAction struct {
	Presentation []byte // 1
}

type ModifyTitleAction struct {
	Title []byte // 1, encrypted GroupAttributeBlob
}

type ModifyAvatarAction struct {
	Avatar string // 1
}

type ModifyDisappearingMessagesTimerAction struct {
	Timer []byte // 1, encrypted GroupAttributeBlob
}

type ModifyAttributesAccessControlAction struct {
	AttributesAccess AccessRequired // 1
}

type ModifyMembersAccessControlAction struct {
	MembersAccess AccessRequired // 1
}

// GroupChangeActions is the plaintext action set of a group change. Field
// numbers define the wire order, which is also application order:
// deletions happen before role changes, promotions after pending removals.
type GroupChangeActions struct {
	SourceUserID                    []byte                                 // 1, encrypted editor service id
	Revision                        uint32                                 // 2
	AddMembers                      []*AddMemberAction                     // 3
	DeleteMembers                   []*DeleteMemberAction                  // 4
	ModifyMemberRoles               []*ModifyMemberRoleAction              // 5
	ModifyMemberProfileKeys         []*ModifyMemberProfileKeyAction        // 6
	AddPendingMembers               []*AddPendingMemberAction              // 7
	DeletePendingMembers            []*DeletePendingMemberAction           // 8
	PromotePendingMembers           []*PromotePendingMemberAction          // 9
	ModifyTitle                     *ModifyTitleAction                     // 10
	ModifyAvatar                    *ModifyAvatarAction                    // 11
	ModifyDisappearingMessagesTimer *ModifyDisappearingMessagesTimerAction // 12
	ModifyAttributesAccess          *ModifyAttributesAccessControlAction   // 13
	ModifyMemberAccess              *ModifyMembersAccessControlAction      // 14
}

func (m *AddMemberAction) Marshal() []byte {
	var b []byte
	if m.Added != nil {
		b = appendMessageField(b, 1, m.Added)
	}
	return b
}

func (m *AddMemberAction) Unmarshal(b []byte) error {
	*m = AddMemberAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Added = new(Member)
			return n, true, m.Added.Unmarshal(v)
		}
		return 0, false, nil
	})
}

func (m *DeleteMemberAction) Marshal() []byte {
	return appendBytesField(nil, 1, m.DeletedUserID)
}

func (m *DeleteMemberAction) Unmarshal(b []byte) error {
	*m = DeleteMemberAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.DeletedUserID = v
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyMemberRoleAction) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.UserID)
	b = appendVarintField(b, 2, uint64(m.Role))
	return b
}

func (m *ModifyMemberRoleAction) Unmarshal(b []byte) error {
	*m = ModifyMemberRoleAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.UserID = v
			return n, true, nil
		case num == 2 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, false, err
			}
			m.Role = Role(v)
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyMemberProfileKeyAction) Marshal() []byte {
	return appendBytesField(nil, 1, m.Presentation)
}

func (m *ModifyMemberProfileKeyAction) Unmarshal(b []byte) error {
	*m = ModifyMemberProfileKeyAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Presentation = v
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *AddPendingMemberAction) Marshal() []byte {
	var b []byte
	if m.Added != nil {
		b = appendMessageField(b, 1, m.Added)
	}
	return b
}

func (m *AddPendingMemberAction) Unmarshal(b []byte) error {
	*m = AddPendingMemberAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Added = new(PendingMember)
			return n, true, m.Added.Unmarshal(v)
		}
		return 0, false, nil
	})
}

func (m *DeletePendingMemberAction) Marshal() []byte {
	return appendBytesField(nil, 1, m.DeletedUserID)
}

func (m *DeletePendingMemberAction) Unmarshal(b []byte) error {
	*m = DeletePendingMemberAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.DeletedUserID = v
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *PromotePendingMemberAction) Marshal() []byte {
	return appendBytesField(nil, 1, m.Presentation)
}

func (m *PromotePendingMemberAction) Unmarshal(b []byte) error {
	*m = PromotePendingMemberAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Presentation = v
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyTitleAction) Marshal() []byte {
	return appendBytesField(nil, 1, m.Title)
}

func (m *ModifyTitleAction) Unmarshal(b []byte) error {
	*m = ModifyTitleAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Title = v
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyAvatarAction) Marshal() []byte {
	return appendStringField(nil, 1, m.Avatar)
}

func (m *ModifyAvatarAction) Unmarshal(b []byte) error {
	*m = ModifyAvatarAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Avatar = string(v)
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyDisappearingMessagesTimerAction) Marshal() []byte {
	return appendBytesField(nil, 1, m.Timer)
}

func (m *ModifyDisappearingMessagesTimerAction) Unmarshal(b []byte) error {
	*m = ModifyDisappearingMessagesTimerAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.Timer = v
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyAttributesAccessControlAction) Marshal() []byte {
	return appendVarintField(nil, 1, uint64(m.AttributesAccess))
}

func (m *ModifyAttributesAccessControlAction) Unmarshal(b []byte) error {
	*m = ModifyAttributesAccessControlAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, false, err
			}
			m.AttributesAccess = AccessRequired(v)
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *ModifyMembersAccessControlAction) Marshal() []byte {
	return appendVarintField(nil, 1, uint64(m.MembersAccess))
}

func (m *ModifyMembersAccessControlAction) Unmarshal(b []byte) error {
	*m = ModifyMembersAccessControlAction{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, false, err
			}
			m.MembersAccess = AccessRequired(v)
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *GroupChangeActions) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.SourceUserID)
	b = appendVarintField(b, 2, uint64(m.Revision))
	for _, a := range m.AddMembers {
		b = appendMessageField(b, 3, a)
	}
	for _, a := range m.DeleteMembers {
		b = appendMessageField(b, 4, a)
	}
	for _, a := range m.ModifyMemberRoles {
		b = appendMessageField(b, 5, a)
	}
	for _, a := range m.ModifyMemberProfileKeys {
		b = appendMessageField(b, 6, a)
	}
	for _, a := range m.AddPendingMembers {
		b = appendMessageField(b, 7, a)
	}
	for _, a := range m.DeletePendingMembers {
		b = appendMessageField(b, 8, a)
	}
	for _, a := range m.PromotePendingMembers {
		b = appendMessageField(b, 9, a)
	}
	if m.ModifyTitle != nil {
		b = appendMessageField(b, 10, m.ModifyTitle)
	}
	if m.ModifyAvatar != nil {
		b = appendMessageField(b, 11, m.ModifyAvatar)
	}
	if m.ModifyDisappearingMessagesTimer != nil {
		b = appendMessageField(b, 12, m.ModifyDisappearingMessagesTimer)
	}
	if m.ModifyAttributesAccess != nil {
		b = appendMessageField(b, 13, m.ModifyAttributesAccess)
	}
	if m.ModifyMemberAccess != nil {
		b = appendMessageField(b, 14, m.ModifyMemberAccess)
	}
	return b
}

type unmarshalable interface {
	Unmarshal([]byte) error
}

func (m *GroupChangeActions) Unmarshal(b []byte) error {
	*m = GroupChangeActions{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return err
			}
			m.SourceUserID = v
			b = b[n:]
			continue
		}
		if num == 2 && typ == protowire.VarintType {
			v, n, err := consumeVarint(b)
			if err != nil {
				return err
			}
			m.Revision = uint32(v)
			b = b[n:]
			continue
		}

		if typ != protowire.BytesType || num < 3 || num > 14 {
			n, err := skipField(num, typ, b)
			if err != nil {
				return err
			}
			b = b[n:]
			continue
		}

		v, n, err := consumeBytes(b)
		if err != nil {
			return err
		}
		b = b[n:]

		var sub unmarshalable
		switch num {
		case 3:
			a := new(AddMemberAction)
			m.AddMembers = append(m.AddMembers, a)
			sub = a
		case 4:
			a := new(DeleteMemberAction)
			m.DeleteMembers = append(m.DeleteMembers, a)
			sub = a
		case 5:
			a := new(ModifyMemberRoleAction)
			m.ModifyMemberRoles = append(m.ModifyMemberRoles, a)
			sub = a
		case 6:
			a := new(ModifyMemberProfileKeyAction)
			m.ModifyMemberProfileKeys = append(m.ModifyMemberProfileKeys, a)
			sub = a
		case 7:
			a := new(AddPendingMemberAction)
			m.AddPendingMembers = append(m.AddPendingMembers, a)
			sub = a
		case 8:
			a := new(DeletePendingMemberAction)
			m.DeletePendingMembers = append(m.DeletePendingMembers, a)
			sub = a
		case 9:
			a := new(PromotePendingMemberAction)
			m.PromotePendingMembers = append(m.PromotePendingMembers, a)
			sub = a
		case 10:
			m.ModifyTitle = new(ModifyTitleAction)
			sub = m.ModifyTitle
		case 11:
			m.ModifyAvatar = new(ModifyAvatarAction)
			sub = m.ModifyAvatar
		case 12:
			m.ModifyDisappearingMessagesTimer = new(ModifyDisappearingMessagesTimerAction)
			sub = m.ModifyDisappearingMessagesTimer
		case 13:
			m.ModifyAttributesAccess = new(ModifyAttributesAccessControlAction)
			sub = m.ModifyAttributesAccess
		case 14:
			m.ModifyMemberAccess = new(ModifyMembersAccessControlAction)
			sub = m.ModifyMemberAccess
		}
		if err := sub.Unmarshal(v); err != nil {
			return err
		}
	}
	return nil
}

// unmarshalFields runs a standard tag-dispatch loop, delegating known
// fields to fn and skipping the rest. fn reports the bytes it consumed and
// whether it recognized the field.
func unmarshalFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		consumed, ok, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if !ok {
			consumed, err = skipField(num, typ, b)
			if err != nil {
				return err
			}
		}
		b = b[consumed:]
	}
	return nil
}
