// Package groupproto contains the wire messages of the Groups V2 protocol,
// hand-encoded with the protowire package. Field numbers are fixed protocol
// surface and must never be renumbered. Unknown fields are skipped on
// decode so newer servers and clients stay interoperable, and every message
// marshals its fields in ascending field-number order so encoding is
// deterministic.
package groupproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Role is a full member's role inside the group.
type Role int32

const (
	RoleUnknown       Role = 0
	RoleDefault       Role = 1
	RoleAdministrator Role = 2
)

// AccessRequired states who may perform a class of group modifications.
type AccessRequired int32

const (
	AccessUnknown       AccessRequired = 0
	AccessAny           AccessRequired = 1
	AccessMember        AccessRequired = 2
	AccessAdministrator AccessRequired = 3
)

type marshaler interface {
	Marshal() []byte
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessageField(b []byte, num protowire.Number, m marshaler) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.Marshal())
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n, nil
}

func consumeVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// skipField advances past a field of any wire type, dropping its value.
func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
