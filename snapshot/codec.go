package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	formatVersionCurrent = 2
	formatVersionV1      = 1
)

const (
	flagAuthenticated = 1 << 0
	flagLoggingOut    = 1 << 1
)

// ErrCorrupt is returned for any snapshot that cannot be decoded. Callers
// treat it as "no prior session", never as fatal.
var ErrCorrupt = errors.New("session snapshot corrupt")

// Projection is the restricted session subset written to durable storage.
type Projection struct {
	Authenticated bool
	LoggingOut    bool

	UserID      string
	DisplayName string
	OrgUnit     string
	Roles       []string

	AccessToken  string
	RefreshToken string

	// ExpiresAt is unix seconds; zero means unknown.
	ExpiresAt int64

	// ClientID is the stable per-installation identifier (v2+).
	ClientID string
}

// Encode serializes p in the current schema version.
func Encode(p *Projection) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(formatVersionCurrent)

	var flags byte
	if p.Authenticated {
		flags |= flagAuthenticated
	}
	if p.LoggingOut {
		flags |= flagLoggingOut
	}
	buf.WriteByte(flags)

	if err := writeShortString(&buf, "userID", p.UserID); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "displayName", p.DisplayName); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "orgUnit", p.OrgUnit); err != nil {
		return nil, err
	}

	if len(p.Roles) > 255 {
		return nil, errors.New("too many roles")
	}
	buf.WriteByte(byte(len(p.Roles)))
	for _, role := range p.Roles {
		if err := writeShortString(&buf, "role", role); err != nil {
			return nil, err
		}
	}

	// Tokens get a 16-bit length: encoded JWTs routinely exceed 255 bytes.
	if err := writeLongString(&buf, "access token", p.AccessToken); err != nil {
		return nil, err
	}
	if err := writeLongString(&buf, "refresh token", p.RefreshToken); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, p.ExpiresAt); err != nil {
		return nil, err
	}

	if err := writeShortString(&buf, "clientID", p.ClientID); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses any supported schema version. All structural failures map to
// [ErrCorrupt].
func Decode(data []byte) (*Projection, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != formatVersionCurrent && version != formatVersionV1 {
		return nil, ErrCorrupt
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}

	p := &Projection{
		Authenticated: flags&flagAuthenticated != 0,
		LoggingOut:    flags&flagLoggingOut != 0,
	}

	if p.UserID, err = readShortString(reader); err != nil {
		return nil, ErrCorrupt
	}
	if p.DisplayName, err = readShortString(reader); err != nil {
		return nil, ErrCorrupt
	}
	if p.OrgUnit, err = readShortString(reader); err != nil {
		return nil, ErrCorrupt
	}

	roleCount, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	for i := 0; i < int(roleCount); i++ {
		role, err := readShortString(reader)
		if err != nil {
			return nil, ErrCorrupt
		}
		p.Roles = append(p.Roles, role)
	}

	if p.AccessToken, err = readLongString(reader); err != nil {
		return nil, ErrCorrupt
	}
	if p.RefreshToken, err = readLongString(reader); err != nil {
		return nil, ErrCorrupt
	}

	if err := binary.Read(reader, binary.BigEndian, &p.ExpiresAt); err != nil {
		return nil, ErrCorrupt
	}

	if version >= formatVersionCurrent {
		if p.ClientID, err = readShortString(reader); err != nil {
			return nil, ErrCorrupt
		}
	}

	if reader.Len() != 0 {
		return nil, ErrCorrupt
	}

	// A snapshot claiming authenticated without credentials is no session.
	if p.Authenticated && (p.UserID == "" || p.AccessToken == "") {
		return nil, ErrCorrupt
	}

	return p, nil
}

func writeShortString(buf *bytes.Buffer, field, s string) error {
	if len(s) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}

func writeLongString(buf *bytes.Buffer, field, s string) error {
	if len(s) > 65535 {
		return errors.New(field + " too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readLongString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}
