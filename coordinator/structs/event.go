package structs

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
)

// EventPrefix marks a program log line carrying an encoded event.
const EventPrefix = "VRF_EVENT:"

type EventTag uint8

const (
	TagRandomnessRequested EventTag = iota
	TagRandomnessFulfilled
	TagSubscriptionCreated
	TagSubscriptionFunded
	TagRequestCancelled
)

// Event is one of the events the coordinator emits.
type Event interface {
	Tag() EventTag
	marshalBody(buf *bytes.Buffer)
}

type RandomnessRequested struct {
	RequestID    pubkey.Pubkey
	Requester    pubkey.Pubkey
	Subscription pubkey.Pubkey
	Seed         [SeedSize]byte
}

func (*RandomnessRequested) Tag() EventTag { return TagRandomnessRequested }

func (ev *RandomnessRequested) marshalBody(buf *bytes.Buffer) {
	borsh.WritePubkey(buf, ev.RequestID)
	borsh.WritePubkey(buf, ev.Requester)
	borsh.WritePubkey(buf, ev.Subscription)
	buf.Write(ev.Seed[:])
}

type RandomnessFulfilled struct {
	RequestID  pubkey.Pubkey
	Requester  pubkey.Pubkey
	Randomness [RandomnessSize]byte
}

func (*RandomnessFulfilled) Tag() EventTag { return TagRandomnessFulfilled }

func (ev *RandomnessFulfilled) marshalBody(buf *bytes.Buffer) {
	borsh.WritePubkey(buf, ev.RequestID)
	borsh.WritePubkey(buf, ev.Requester)
	buf.Write(ev.Randomness[:])
}

type SubscriptionCreated struct {
	Subscription pubkey.Pubkey
	Owner        pubkey.Pubkey
	MinBalance   uint64
}

func (*SubscriptionCreated) Tag() EventTag { return TagSubscriptionCreated }

func (ev *SubscriptionCreated) marshalBody(buf *bytes.Buffer) {
	borsh.WritePubkey(buf, ev.Subscription)
	borsh.WritePubkey(buf, ev.Owner)
	borsh.WriteU64(buf, ev.MinBalance)
}

type SubscriptionFunded struct {
	Subscription pubkey.Pubkey
	Funder       pubkey.Pubkey
	Amount       uint64
}

func (*SubscriptionFunded) Tag() EventTag { return TagSubscriptionFunded }

func (ev *SubscriptionFunded) marshalBody(buf *bytes.Buffer) {
	borsh.WritePubkey(buf, ev.Subscription)
	borsh.WritePubkey(buf, ev.Funder)
	borsh.WriteU64(buf, ev.Amount)
}

type RequestCancelled struct {
	RequestID    pubkey.Pubkey
	Subscription pubkey.Pubkey
}

func (*RequestCancelled) Tag() EventTag { return TagRequestCancelled }

func (ev *RequestCancelled) marshalBody(buf *bytes.Buffer) {
	borsh.WritePubkey(buf, ev.RequestID)
	borsh.WritePubkey(buf, ev.Subscription)
}

func MarshalEvent(ev Event) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(uint8(ev.Tag()))
	ev.marshalBody(buf)
	return buf.Bytes()
}

// FormatEvent returns the log line announcing `ev`.
func FormatEvent(ev Event) string {
	return EventPrefix + base64.StdEncoding.EncodeToString(MarshalEvent(ev))
}

func NewEvent(data []byte) (Event, error) {
	buf := bytes.NewBuffer(data)
	tag, err := borsh.ReadU8(buf)
	if err != nil {
		return nil, err
	}

	var ev Event
	switch EventTag(tag) {
	case TagRandomnessRequested:
		out := &RandomnessRequested{}
		if out.RequestID, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Requester, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Subscription, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Seed, err = readArray32(buf); err != nil {
			return nil, err
		}
		ev = out

	case TagRandomnessFulfilled:
		out := &RandomnessFulfilled{}
		if out.RequestID, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Requester, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if buf.Len() < RandomnessSize {
			return nil, io.ErrUnexpectedEOF
		}
		copy(out.Randomness[:], buf.Next(RandomnessSize))
		ev = out

	case TagSubscriptionCreated:
		out := &SubscriptionCreated{}
		if out.Subscription, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Owner, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.MinBalance, err = borsh.ReadU64(buf); err != nil {
			return nil, err
		}
		ev = out

	case TagSubscriptionFunded:
		out := &SubscriptionFunded{}
		if out.Subscription, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Funder, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Amount, err = borsh.ReadU64(buf); err != nil {
			return nil, err
		}
		ev = out

	case TagRequestCancelled:
		out := &RequestCancelled{}
		if out.RequestID, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.Subscription, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		}
		ev = out

	default:
		return nil, fmt.Errorf("unknown event tag %d", tag)
	}

	if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return ev, nil
}

// ParseEvent extracts the event from a log line. Lines that do not carry an
// event return a nil Event and no error.
func ParseEvent(line string) (Event, error) {
	idx := strings.Index(line, EventPrefix)
	if idx < 0 {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line[idx+len(EventPrefix):]))
	if err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return NewEvent(raw)
}
