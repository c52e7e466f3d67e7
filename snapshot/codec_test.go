package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func sampleProjection() *Projection {
	return &Projection{
		Authenticated: true,
		UserID:        "u-100",
		DisplayName:   "Alice Chen",
		OrgUnit:       "legal",
		Roles:         []string{"ADMIN", "MANAGER"},
		AccessToken:   "header.payload.signature",
		RefreshToken:  "rt-opaque-1",
		ExpiresAt:     1767225600,
		ClientID:      "client-abc",
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleProjection()

	data, err := Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.UserID != want.UserID || got.DisplayName != want.DisplayName ||
		got.OrgUnit != want.OrgUnit || got.ClientID != want.ClientID {
		t.Fatalf("identity fields mismatch: %+v", got)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Fatalf("token fields mismatch: %+v", got)
	}
	if got.ExpiresAt != want.ExpiresAt {
		t.Fatalf("expiry mismatch: %d", got.ExpiresAt)
	}
	if len(got.Roles) != 2 || got.Roles[0] != "ADMIN" || got.Roles[1] != "MANAGER" {
		t.Fatalf("roles mismatch: %v", got.Roles)
	}
	if !got.Authenticated || got.LoggingOut {
		t.Fatalf("flags mismatch: %+v", got)
	}
}

func TestRoundTripLoggingOut(t *testing.T) {
	data, err := Encode(&Projection{LoggingOut: true, ClientID: "client-abc"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Authenticated || !got.LoggingOut {
		t.Fatalf("flags mismatch: %+v", got)
	}
	if got.ClientID != "client-abc" {
		t.Fatalf("clientID mismatch: %q", got.ClientID)
	}
}

func TestDecodeTruncated(t *testing.T) {
	data, err := Encode(sampleProjection())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for cut := 0; cut < len(data); cut++ {
		if _, err := Decode(data[:cut]); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("truncation at %d not rejected: %v", cut, err)
		}
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	data, err := Encode(sampleProjection())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(append(data, 0x00)); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("trailing byte not rejected: %v", err)
	}
}

func TestDecodeUnknownVersion(t *testing.T) {
	data, err := Encode(sampleProjection())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = 99
	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("unknown version not rejected: %v", err)
	}
}

func TestDecodeAuthenticatedWithoutCredentials(t *testing.T) {
	data, err := Encode(&Projection{Authenticated: true, ClientID: "client-abc"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("credential-less snapshot not rejected: %v", err)
	}
}

// V1 snapshots predate the clientID field; they still decode.
func TestDecodeV1(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(formatVersionV1)
	buf.WriteByte(flagAuthenticated)
	writeV1Short(&buf, "u-100")
	writeV1Short(&buf, "Alice Chen")
	writeV1Short(&buf, "legal")
	buf.WriteByte(1)
	writeV1Short(&buf, "ADMIN")
	writeV1Long(&buf, "header.payload.signature")
	writeV1Long(&buf, "rt-opaque-1")
	binary.Write(&buf, binary.BigEndian, int64(1767225600))

	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode v1: %v", err)
	}
	if got.UserID != "u-100" || got.AccessToken != "header.payload.signature" {
		t.Fatalf("v1 fields mismatch: %+v", got)
	}
	if got.ClientID != "" {
		t.Fatalf("v1 must not carry a clientID, got %q", got.ClientID)
	}
}

func writeV1Short(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

func writeV1Long(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}
