package groupproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// GroupChangeState is one entry of the server's group change log: the
// signed change for a revision, the resulting full state, or both.
type GroupChangeState struct {
	GroupChange *GroupChange // 1
	GroupState  *Group       // 2
}

func (m *GroupChangeState) Marshal() []byte {
	var b []byte
	if m.GroupChange != nil {
		b = appendMessageField(b, 1, m.GroupChange)
	}
	if m.GroupState != nil {
		b = appendMessageField(b, 2, m.GroupState)
	}
	return b
}

func (m *GroupChangeState) Unmarshal(b []byte) error {
	*m = GroupChangeState{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.GroupChange = new(GroupChange)
			return n, true, m.GroupChange.Unmarshal(v)
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.GroupState = new(Group)
			return n, true, m.GroupState.Unmarshal(v)
		}
		return 0, false, nil
	})
}

// GroupChanges is the server's response to a group history query, ordered
// by ascending revision.
type GroupChanges struct {
	GroupChanges []*GroupChangeState // 1
}

func (m *GroupChanges) Marshal() []byte {
	var b []byte
	for _, s := range m.GroupChanges {
		b = appendMessageField(b, 1, s)
	}
	return b
}

func (m *GroupChanges) Unmarshal(b []byte) error {
	*m = GroupChanges{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			s := new(GroupChangeState)
			m.GroupChanges = append(m.GroupChanges, s)
			return n, true, s.Unmarshal(v)
		}
		return 0, false, nil
	})
}

// GroupPush is a server-pushed signed change notification delivered over
// the websocket. The id is echoed back in the ack.
type GroupPush struct {
	ID          uint64       // 1
	GroupID     []byte       // 2
	GroupChange *GroupChange // 3
}

func (m *GroupPush) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, m.ID)
	b = appendBytesField(b, 2, m.GroupID)
	if m.GroupChange != nil {
		b = appendMessageField(b, 3, m.GroupChange)
	}
	return b
}

func (m *GroupPush) Unmarshal(b []byte) error {
	*m = GroupPush{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, false, err
			}
			m.ID = v
			return n, true, nil
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.GroupID = v
			return n, true, nil
		case num == 3 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, false, err
			}
			m.GroupChange = new(GroupChange)
			return n, true, m.GroupChange.Unmarshal(v)
		}
		return 0, false, nil
	})
}

// GroupPushAck acknowledges a GroupPush frame.
type GroupPushAck struct {
	ID     uint64 // 1
	Status uint32 // 2
}

func (m *GroupPushAck) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, m.ID)
	b = appendVarintField(b, 2, uint64(m.Status))
	return b
}

func (m *GroupPushAck) Unmarshal(b []byte) error {
	*m = GroupPushAck{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, false, err
			}
			m.ID = v
			return n, true, nil
		case num == 2 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, false, err
			}
			m.Status = uint32(v)
			return n, true, nil
		}
		return 0, false, nil
	})
}
