// Package state defines the three account record shapes and their binary
// layout.
//
// Every record starts with (discriminator, initialized). The discriminator is
// a length-prefixed tag naming the record type; initialized is a single byte.
// Account data is decoded leniently: fixed-size accounts are zero padded, so
// trailing bytes after the record are ignored, and all-zero (or empty) data
// is an Uninitialized record of whatever shape was asked for.
package state

import (
	"errors"
	"fmt"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/wire"
)

const (
	IntroDiscriminator   = "studentinfo"
	CounterDiscriminator = "counter"
	ReplyDiscriminator   = "reply"
)

const (
	// IntroAccountSize is the fixed allocation for an intro account.
	IntroAccountSize = 1000
	// IntroMaxLen bounds the encoded IntroRecord.
	IntroMaxLen = 1000
	// ReplyMaxLen bounds the encoded ReplyRecord.
	ReplyMaxLen = 1000
	// MaxReplies is the reply ceiling imposed by the one-byte counter.
	MaxReplies = 255
)

// Status is the lifecycle state of a record. The only transition is
// Uninitialized to Active, made once when the account is created.
type Status uint8

const (
	Uninitialized Status = iota
	Active
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Kind is the record variant.
type Kind uint8

const (
	KindIntro Kind = iota + 1
	KindCounter
	KindReply
)

func (k Kind) String() string {
	switch k {
	case KindIntro:
		return "intro"
	case KindCounter:
		return "counter"
	case KindReply:
		return "reply"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Record is implemented by *IntroRecord, *ReplyCounter and *ReplyRecord.
type Record interface {
	Kind() Kind
	Status() Status
	// Len is the encoded length in bytes.
	Len() int
	Encode() []byte
}

// IntroLen is the encoded length of an IntroRecord with the given text sizes.
func IntroLen(nameLen, messageLen int) int {
	return wire.StringLen(len(IntroDiscriminator)) + 1 + wire.StringLen(nameLen) + wire.StringLen(messageLen)
}

// CounterLen is the encoded (and allocated) length of a ReplyCounter.
var CounterLen = wire.StringLen(len(CounterDiscriminator)) + 1 + 1

// ReplyLen is the encoded (and allocated) length of a ReplyRecord.
func ReplyLen(replyLen int) int {
	return wire.StringLen(len(ReplyDiscriminator)) + 1 + address.Size + wire.StringLen(replyLen)
}

// IntroRecord is the per-identity introduction.
type IntroRecord struct {
	Tag     string
	State   Status
	Name    string
	Message string
}

// NewIntro returns an Active IntroRecord.
func NewIntro(name, message string) *IntroRecord {
	return &IntroRecord{Tag: IntroDiscriminator, State: Active, Name: name, Message: message}
}

func (r *IntroRecord) Kind() Kind     { return KindIntro }
func (r *IntroRecord) Status() Status { return r.State }
func (r *IntroRecord) Len() int       { return IntroLen(len(r.Name), len(r.Message)) }

func (r *IntroRecord) Encode() []byte {
	e := wire.NewEncoder(r.Len())
	e.String(r.Tag)
	e.Bool(r.State == Active)
	e.String(r.Name)
	e.String(r.Message)
	return e.Result()
}

// ReplyCounter tracks how many replies an intro has.
type ReplyCounter struct {
	Tag   string
	State Status
	Count uint8
}

// NewCounter returns an Active ReplyCounter at zero.
func NewCounter() *ReplyCounter {
	return &ReplyCounter{Tag: CounterDiscriminator, State: Active}
}

func (r *ReplyCounter) Kind() Kind     { return KindCounter }
func (r *ReplyCounter) Status() Status { return r.State }
func (r *ReplyCounter) Len() int       { return CounterLen }

func (r *ReplyCounter) Encode() []byte {
	e := wire.NewEncoder(CounterLen)
	e.String(r.Tag)
	e.Bool(r.State == Active)
	e.U8(r.Count)
	return e.Result()
}

// Increment advances the count. It fails with CounterExhausted at MaxReplies.
func (r *ReplyCounter) Increment() error {
	if r.Count >= MaxReplies {
		return errcode.Newf(errcode.CounterExhausted, "reply counter is at its ceiling of %d", MaxReplies)
	}
	r.Count++
	return nil
}

// ReplyRecord is one immutable reply.
type ReplyRecord struct {
	Tag    string
	State  Status
	Parent address.Address
	Reply  string
}

// NewReply returns an Active ReplyRecord under parent.
func NewReply(parent address.Address, reply string) *ReplyRecord {
	return &ReplyRecord{Tag: ReplyDiscriminator, State: Active, Parent: parent, Reply: reply}
}

func (r *ReplyRecord) Kind() Kind     { return KindReply }
func (r *ReplyRecord) Status() Status { return r.State }
func (r *ReplyRecord) Len() int       { return ReplyLen(len(r.Reply)) }

func (r *ReplyRecord) Encode() []byte {
	e := wire.NewEncoder(r.Len())
	e.String(r.Tag)
	e.Bool(r.State == Active)
	e.Fixed(r.Parent[:])
	e.String(r.Reply)
	return e.Result()
}

// Store writes rec into the front of dst, leaving the rest untouched. It
// fails with SizeLimitExceeded if dst is too small.
func Store(rec Record, dst []byte) error {
	b := rec.Encode()
	if len(b) > len(dst) {
		return errcode.Newf(errcode.SizeLimitExceeded, "%s record is %d bytes, account holds %d", rec.Kind(), len(b), len(dst))
	}
	copy(dst, b)
	return nil
}

func decodeErr(what string, err error) error {
	return errcode.Wrap(errcode.DecodingError, what, err)
}

func header(d *wire.Decoder, kind Kind, want string) (string, Status, error) {
	tag, err := d.String()
	if err != nil {
		return "", 0, decodeErr(kind.String()+" discriminator", err)
	}
	flag, err := d.Bool()
	if err != nil {
		return "", 0, decodeErr(kind.String()+" initialized flag", err)
	}
	st := Uninitialized
	if flag {
		st = Active
	}
	if st == Active && tag != want {
		return "", 0, errcode.Newf(errcode.DecodingError, "expected %q record, found %q", want, tag)
	}
	return tag, st, nil
}

// DecodeIntro decodes account data as an IntroRecord.
func DecodeIntro(data []byte) (*IntroRecord, error) {
	r := &IntroRecord{}
	if len(data) == 0 {
		return r, nil
	}
	d := wire.NewDecoder(data)
	var err error
	if r.Tag, r.State, err = header(d, KindIntro, IntroDiscriminator); err != nil {
		return nil, err
	}
	if r.Name, err = d.String(); err != nil {
		return nil, decodeErr("intro name", err)
	}
	if r.Message, err = d.String(); err != nil {
		return nil, decodeErr("intro message", err)
	}
	return r, nil
}

// DecodeCounter decodes account data as a ReplyCounter.
func DecodeCounter(data []byte) (*ReplyCounter, error) {
	r := &ReplyCounter{}
	if len(data) == 0 {
		return r, nil
	}
	d := wire.NewDecoder(data)
	var err error
	if r.Tag, r.State, err = header(d, KindCounter, CounterDiscriminator); err != nil {
		return nil, err
	}
	if r.Count, err = d.U8(); err != nil {
		return nil, decodeErr("counter value", err)
	}
	return r, nil
}

// DecodeReply decodes account data as a ReplyRecord.
func DecodeReply(data []byte) (*ReplyRecord, error) {
	r := &ReplyRecord{}
	if len(data) == 0 {
		return r, nil
	}
	d := wire.NewDecoder(data)
	var err error
	if r.Tag, r.State, err = header(d, KindReply, ReplyDiscriminator); err != nil {
		return nil, err
	}
	parent, err := d.Fixed(address.Size)
	if err != nil {
		return nil, decodeErr("reply parent", err)
	}
	copy(r.Parent[:], parent)
	if r.Reply, err = d.String(); err != nil {
		return nil, decodeErr("reply text", err)
	}
	return r, nil
}

// ErrUntagged is returned by Decode for data with no discriminator.
var ErrUntagged = errors.New("state: record has no discriminator")

// Decode picks the record variant from the discriminator.
func Decode(data []byte) (Record, error) {
	tag, err := wire.NewDecoder(data).String()
	if err != nil {
		return nil, decodeErr("discriminator", err)
	}
	switch tag {
	case IntroDiscriminator:
		return DecodeIntro(data)
	case CounterDiscriminator:
		return DecodeCounter(data)
	case ReplyDiscriminator:
		return DecodeReply(data)
	case "":
		return nil, decodeErr("untagged record", ErrUntagged)
	default:
		return nil, errcode.Newf(errcode.DecodingError, "unknown discriminator %q", tag)
	}
}
