package session

import (
	"encoding/binary"
	"errors"
)

const formatVersion = 1

// Fixed-offset header layout. The rotation Lua script depends on these
// offsets; change them together with rotateRefreshScript.
const (
	offVersion     = 0
	offRefreshHash = 1
	offFlags       = 33
	offCreatedAt   = 34
	offExpiresAt   = 42
	offUserIDLen   = 50
	headerSize     = 51
)

const flagRemembered = 1 << 0

var errCorruptBlob = errors.New("corrupt session blob")

func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	if len(s.Email) > 255 {
		return nil, errors.New("email too long")
	}
	if len(s.Role) > 255 {
		return nil, errors.New("role too long")
	}

	buf := make([]byte, 0, headerSize+len(s.UserID)+2+len(s.Email)+len(s.Role))
	buf = append(buf, formatVersion)
	buf = append(buf, s.RefreshHash[:]...)

	var flags byte
	if s.Remembered {
		flags |= flagRemembered
	}
	buf = append(buf, flags)

	buf = binary.BigEndian.AppendUint64(buf, uint64(s.CreatedAt))
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.ExpiresAt))

	buf = append(buf, byte(len(s.UserID)))
	buf = append(buf, s.UserID...)
	buf = append(buf, byte(len(s.Email)))
	buf = append(buf, s.Email...)
	buf = append(buf, byte(len(s.Role)))
	buf = append(buf, s.Role...)

	return buf, nil
}

func Decode(data []byte) (*Session, error) {
	if len(data) < headerSize {
		return nil, errCorruptBlob
	}
	if data[offVersion] != formatVersion {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}
	copy(s.RefreshHash[:], data[offRefreshHash:offRefreshHash+32])
	s.Remembered = data[offFlags]&flagRemembered != 0
	s.CreatedAt = int64(binary.BigEndian.Uint64(data[offCreatedAt : offCreatedAt+8]))
	s.ExpiresAt = int64(binary.BigEndian.Uint64(data[offExpiresAt : offExpiresAt+8]))

	rest := data[offUserIDLen:]
	var field string
	var err error

	field, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}
	s.UserID = field

	field, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}
	s.Email = field

	field, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}
	s.Role = field

	if len(rest) != 0 {
		return nil, errCorruptBlob
	}

	return s, nil
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 1 {
		return "", nil, errCorruptBlob
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, errCorruptBlob
	}
	return string(data[1 : 1+n]), data[1+n:], nil
}
