package bus

import (
	"errors"
	"testing"

	"github.com/curbz/atc-kernel/internal/atcerr"
)

func TestEncodeDecodePositionUpdateRoundTrip(t *testing.T) {
	msg := NewPositionUpdate("RADAR", 1234, Position{
		Callsign: "AC1", X: 1, Y: 2, Z: 3, VX: 4, VY: 5, VZ: 6, Heading: 90, Status: 1, TimestampMS: 1234,
	})

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Type != TypePositionUpdate || got.SenderID != "RADAR" || got.TimestampMS != 1234 {
		t.Fatalf("envelope mismatch: %+v", got)
	}
	if got.Position == nil || *got.Position != *msg.Position {
		t.Fatalf("position payload mismatch: got %+v want %+v", got.Position, msg.Position)
	}
}

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	msg := NewCommand("OPERATOR", 500, Command{TargetID: "AC1", Command: "ALT", Params: []string{"21000"}})

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Command == nil || got.Command.TargetID != "AC1" || got.Command.Command != "ALT" {
		t.Fatalf("command payload mismatch: %+v", got.Command)
	}
	if len(got.Command.Params) != 1 || got.Command.Params[0] != "21000" {
		t.Fatalf("command params mismatch: %+v", got.Command.Params)
	}
}

func TestEncodeDecodeCommandZeroParams(t *testing.T) {
	msg := NewCommand("OPERATOR", 500, Command{TargetID: "AC1", Command: "STATUS"})
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(got.Command.Params) != 0 {
		t.Fatalf("expected zero params, got %v", got.Command.Params)
	}
}

func TestEncodeDecodeAlertRoundTrip(t *testing.T) {
	msg := NewAlert("SEPARATION", 999, Alert{Level: AlertLevelCritical, Description: "conflict", TimestampMS: 999})
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Alert == nil || got.Alert.Level != AlertLevelCritical || got.Alert.Description != "conflict" {
		t.Fatalf("alert payload mismatch: %+v", got.Alert)
	}
}

func TestEncodeDecodeStatusResponseRoundTrip(t *testing.T) {
	msg := NewStatusResponse("AC1", 42, StatusResponse{TargetID: "AC1", StatusText: "CRUISING", TimestampMS: 42})
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.StatusResponse == nil || got.StatusResponse.StatusText != "CRUISING" {
		t.Fatalf("status response mismatch: %+v", got.StatusResponse)
	}
}

func TestEncodeDecodeTextPayloadTypes(t *testing.T) {
	for _, typ := range []Type{TypeStatusRequest, TypeOperatorInput, TypeOperatorResponse} {
		msg := NewText(typ, "OPERATOR", 1, "STATUS AC1")
		data, err := Encode(msg)
		if err != nil {
			t.Fatalf("unexpected encode error for %v: %v", typ, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("unexpected decode error for %v: %v", typ, err)
		}
		if got.Text == nil || got.Text.Body != "STATUS AC1" {
			t.Fatalf("text payload mismatch for %v: %+v", typ, got.Text)
		}
	}
}

func TestEncodeMissingPayloadIsInvalidInput(t *testing.T) {
	msg := Message{Type: TypePositionUpdate, SenderID: "RADAR", TimestampMS: 1}
	_, err := Encode(msg)
	if !errors.Is(err, atcerr.InvalidInput) {
		t.Fatalf("expected InvalidInput for missing payload, got %v", err)
	}
}

func TestDecodeTruncatedDataIsError(t *testing.T) {
	_, err := Decode([]byte{0x00})
	if err == nil {
		t.Fatalf("expected error decoding truncated data")
	}
}

func TestDecodeUnknownTypeIsInvalidInput(t *testing.T) {
	msg := NewAlert("X", 1, Alert{Level: 0, Description: "d", TimestampMS: 1})
	data, _ := Encode(msg)
	data[0] = 0xFF
	_, err := Decode(data)
	if !errors.Is(err, atcerr.InvalidInput) {
		t.Fatalf("expected InvalidInput for unknown type tag, got %v", err)
	}
}
