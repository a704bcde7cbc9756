// Package instruction decodes and encodes intro program instructions.
//
// Byte 0 selects the variant; the remainder is the variant's text fields in
// declared order, each a 4-byte little-endian length followed by UTF-8 bytes.
// The remainder must be consumed exactly.
package instruction

import (
	"fmt"

	"xdao.co/introledger/errcode"
	"xdao.co/introledger/wire"
)

// Variant is the instruction discriminant.
type Variant uint8

const (
	VariantCreate      Variant = 0
	VariantUpdate      Variant = 1
	VariantAppendReply Variant = 2
)

func (v Variant) String() string {
	switch v {
	case VariantCreate:
		return "CreateIntro"
	case VariantUpdate:
		return "UpdateIntro"
	case VariantAppendReply:
		return "AppendReply"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Command is a decoded instruction: CreateIntro, UpdateIntro or AppendReply.
type Command interface {
	Variant() Variant
	fields() []string
}

type CreateIntro struct {
	Name    string
	Message string
}

type UpdateIntro struct {
	Name    string
	Message string
}

type AppendReply struct {
	Reply string
}

func (CreateIntro) Variant() Variant { return VariantCreate }
func (UpdateIntro) Variant() Variant { return VariantUpdate }
func (AppendReply) Variant() Variant { return VariantAppendReply }

func (c CreateIntro) fields() []string { return []string{c.Name, c.Message} }
func (c UpdateIntro) fields() []string { return []string{c.Name, c.Message} }
func (c AppendReply) fields() []string { return []string{c.Reply} }

// Unpack decodes raw instruction bytes. Every failure is a DecodingError.
func Unpack(data []byte) (Command, error) {
	if len(data) == 0 {
		return nil, errcode.New(errcode.DecodingError, "empty instruction")
	}
	v := Variant(data[0])
	var n int
	switch v {
	case VariantCreate, VariantUpdate:
		n = 2
	case VariantAppendReply:
		n = 1
	default:
		return nil, errcode.Newf(errcode.DecodingError, "unknown instruction discriminant %d", data[0])
	}

	d := wire.NewDecoder(data[1:])
	f := make([]string, n)
	for i := range f {
		s, err := d.String()
		if err != nil {
			return nil, errcode.Wrap(errcode.DecodingError, fmt.Sprintf("%s field %d", v, i), err)
		}
		f[i] = s
	}
	if err := d.Finish(); err != nil {
		return nil, errcode.Wrap(errcode.DecodingError, v.String(), err)
	}

	switch v {
	case VariantCreate:
		return CreateIntro{Name: f[0], Message: f[1]}, nil
	case VariantUpdate:
		return UpdateIntro{Name: f[0], Message: f[1]}, nil
	default:
		return AppendReply{Reply: f[0]}, nil
	}
}

// Pack encodes cmd into instruction bytes.
func Pack(cmd Command) []byte {
	e := wire.NewEncoder(64)
	e.U8(uint8(cmd.Variant()))
	for _, s := range cmd.fields() {
		e.String(s)
	}
	return e.Result()
}
