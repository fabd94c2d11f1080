package bus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/curbz/atc-kernel/internal/atcerr"
)

// Encode renders msg into spec.md §6's fixed-layout wire record: a
// 1-byte type tag, a length-prefixed sender_id, an 8-byte unsigned
// millisecond timestamp, then the type-discriminated payload.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Type))
	writeString(&buf, msg.SenderID)
	writeUint64(&buf, msg.TimestampMS)

	switch msg.Type {
	case TypePositionUpdate:
		if msg.Position == nil {
			return nil, fmt.Errorf("POSITION_UPDATE message missing payload: %w", atcerr.InvalidInput)
		}
		writePosition(&buf, *msg.Position)
	case TypeCommand:
		if msg.Command == nil {
			return nil, fmt.Errorf("COMMAND message missing payload: %w", atcerr.InvalidInput)
		}
		writeCommand(&buf, *msg.Command)
	case TypeAlert:
		if msg.Alert == nil {
			return nil, fmt.Errorf("ALERT message missing payload: %w", atcerr.InvalidInput)
		}
		writeAlert(&buf, *msg.Alert)
	case TypeStatusResponse:
		if msg.StatusResponse == nil {
			return nil, fmt.Errorf("STATUS_RESPONSE message missing payload: %w", atcerr.InvalidInput)
		}
		writeStatusResponse(&buf, *msg.StatusResponse)
	case TypeStatusRequest, TypeOperatorInput, TypeOperatorResponse:
		if msg.Text == nil {
			return nil, fmt.Errorf("%s message missing payload: %w", msg.Type, atcerr.InvalidInput)
		}
		writeString(&buf, msg.Text.Body)
	default:
		return nil, fmt.Errorf("unknown message type %d: %w", msg.Type, atcerr.InvalidInput)
	}

	return buf.Bytes(), nil
}

// Decode parses a wire record produced by Encode.
func Decode(data []byte) (Message, error) {
	r := bytes.NewReader(data)

	tagByte, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("reading type tag: %w", atcerr.InvalidInput)
	}
	typ := Type(tagByte)

	sender, err := readString(r)
	if err != nil {
		return Message{}, fmt.Errorf("reading sender_id: %w", atcerr.InvalidInput)
	}
	ts, err := readUint64(r)
	if err != nil {
		return Message{}, fmt.Errorf("reading timestamp: %w", atcerr.InvalidInput)
	}

	msg := Message{Type: typ, SenderID: sender, TimestampMS: ts}

	switch typ {
	case TypePositionUpdate:
		p, err := readPosition(r)
		if err != nil {
			return Message{}, err
		}
		msg.Position = &p
	case TypeCommand:
		c, err := readCommand(r)
		if err != nil {
			return Message{}, err
		}
		msg.Command = &c
	case TypeAlert:
		a, err := readAlert(r)
		if err != nil {
			return Message{}, err
		}
		msg.Alert = &a
	case TypeStatusResponse:
		s, err := readStatusResponse(r)
		if err != nil {
			return Message{}, err
		}
		msg.StatusResponse = &s
	case TypeStatusRequest, TypeOperatorInput, TypeOperatorResponse:
		body, err := readString(r)
		if err != nil {
			return Message{}, fmt.Errorf("reading text payload: %w", atcerr.InvalidInput)
		}
		msg.Text = &Text{Body: body}
	default:
		return Message{}, fmt.Errorf("unknown message type %d: %w", typ, atcerr.InvalidInput)
	}

	return msg, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func writeF64(buf *bytes.Buffer, v float64) {
	writeUint64(buf, math.Float64bits(v))
}

func readF64(r *bytes.Reader) (float64, error) {
	bits, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func writePosition(buf *bytes.Buffer, p Position) {
	writeString(buf, p.Callsign)
	writeF64(buf, p.X)
	writeF64(buf, p.Y)
	writeF64(buf, p.Z)
	writeF64(buf, p.VX)
	writeF64(buf, p.VY)
	writeF64(buf, p.VZ)
	writeF64(buf, p.Heading)
	buf.WriteByte(p.Status)
	writeUint64(buf, p.TimestampMS)
}

func readPosition(r *bytes.Reader) (Position, error) {
	var p Position
	var err error
	if p.Callsign, err = readString(r); err != nil {
		return p, fmt.Errorf("reading callsign: %w", atcerr.InvalidInput)
	}
	vals := make([]float64, 7)
	for i := range vals {
		if vals[i], err = readF64(r); err != nil {
			return p, fmt.Errorf("reading position payload: %w", atcerr.InvalidInput)
		}
	}
	p.X, p.Y, p.Z, p.VX, p.VY, p.VZ, p.Heading = vals[0], vals[1], vals[2], vals[3], vals[4], vals[5], vals[6]
	status, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("reading status: %w", atcerr.InvalidInput)
	}
	p.Status = status
	if p.TimestampMS, err = readUint64(r); err != nil {
		return p, fmt.Errorf("reading position timestamp: %w", atcerr.InvalidInput)
	}
	return p, nil
}

func writeCommand(buf *bytes.Buffer, c Command) {
	writeString(buf, c.TargetID)
	writeString(buf, c.Command)
	writeUint32(buf, uint32(len(c.Params)))
	for _, p := range c.Params {
		writeString(buf, p)
	}
}

func readCommand(r *bytes.Reader) (Command, error) {
	var c Command
	var err error
	if c.TargetID, err = readString(r); err != nil {
		return c, fmt.Errorf("reading target_id: %w", atcerr.InvalidInput)
	}
	if c.Command, err = readString(r); err != nil {
		return c, fmt.Errorf("reading command: %w", atcerr.InvalidInput)
	}
	count, err := readUint32(r)
	if err != nil {
		return c, fmt.Errorf("reading param count: %w", atcerr.InvalidInput)
	}
	c.Params = make([]string, count)
	for i := range c.Params {
		if c.Params[i], err = readString(r); err != nil {
			return c, fmt.Errorf("reading param %d: %w", i, atcerr.InvalidInput)
		}
	}
	return c, nil
}

func writeAlert(buf *bytes.Buffer, a Alert) {
	buf.WriteByte(a.Level)
	writeString(buf, a.Description)
	writeUint64(buf, a.TimestampMS)
}

func readAlert(r *bytes.Reader) (Alert, error) {
	var a Alert
	level, err := r.ReadByte()
	if err != nil {
		return a, fmt.Errorf("reading alert level: %w", atcerr.InvalidInput)
	}
	a.Level = level
	if a.Description, err = readString(r); err != nil {
		return a, fmt.Errorf("reading alert description: %w", atcerr.InvalidInput)
	}
	if a.TimestampMS, err = readUint64(r); err != nil {
		return a, fmt.Errorf("reading alert timestamp: %w", atcerr.InvalidInput)
	}
	return a, nil
}

func writeStatusResponse(buf *bytes.Buffer, s StatusResponse) {
	writeString(buf, s.TargetID)
	writeString(buf, s.StatusText)
	writeUint64(buf, s.TimestampMS)
}

func readStatusResponse(r *bytes.Reader) (StatusResponse, error) {
	var s StatusResponse
	var err error
	if s.TargetID, err = readString(r); err != nil {
		return s, fmt.Errorf("reading target_id: %w", atcerr.InvalidInput)
	}
	if s.StatusText, err = readString(r); err != nil {
		return s, fmt.Errorf("reading status_text: %w", atcerr.InvalidInput)
	}
	if s.TimestampMS, err = readUint64(r); err != nil {
		return s, fmt.Errorf("reading status_response timestamp: %w", atcerr.InvalidInput)
	}
	return s, nil
}
