package protocol

import (
	"encoding/binary"
	"strings"
)

// UserIDSize is the fixed width of a UserID on the wire.
const UserIDSize = 4

// UserID is the unique numeric identity of a registered user. It is
// assigned once at registration and never changes. On the wire it is
// big-endian in exactly UserIDSize bytes.
type UserID uint32

// UserIDFromBytes decodes a big-endian id from exactly UserIDSize
// bytes.
func UserIDFromBytes(data []byte) UserID {
	return UserID(binary.BigEndian.Uint32(data))
}

// Bytes encodes the id big-endian into UserIDSize bytes.
func (id UserID) Bytes() []byte {
	data := make([]byte, UserIDSize)
	binary.BigEndian.PutUint32(data, uint32(id))

	return data
}

// User is the public shape of a registered account. The username is
// the unique login key; the nickname is a display name with no
// uniqueness constraint.
type User struct {
	ID       UserID
	Username string
	Nickname string
}

// Encode serialises the user as the UserConnected payload: the id
// followed by `username;nickname`. The outer frame length is the only
// length marker.
func (u *User) Encode() []byte {
	result := make([]byte, 0, UserIDSize+len(u.Username)+1+len(u.Nickname))

	result = append(result, u.ID.Bytes()...)
	result = append(result, u.Username...)
	result = append(result, FieldDelimiter...)
	result = append(result, u.Nickname...)

	return result
}

// DecodeUser reads a User back out of a UserConnected payload.
func DecodeUser(buf *BytesBuffer) (*User, error) {
	idBytes, err := buf.ReadExact(UserIDSize)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	id := UserIDFromBytes(idBytes)

	data, err := buf.ReadRemaining()
	if err != nil {
		return nil, ErrInvalidPayload
	}

	fields := strings.Split(DecodeText(data), FieldDelimiter)
	if len(fields) < 2 {
		return nil, ErrInvalidPayload
	}

	return &User{
		ID:       id,
		Username: fields[0],
		Nickname: fields[1],
	}, nil
}

// Contact is the read-only projection of a User sent in reply to a
// contact lookup.
type Contact struct {
	ID       UserID
	Nickname string
}

// Encode serialises the contact as the ReceiveContactInfo payload: the
// id followed by the raw nickname bytes. The id has fixed width so no
// delimiter is needed.
func (c *Contact) Encode() []byte {
	result := make([]byte, 0, UserIDSize+len(c.Nickname))

	result = append(result, c.ID.Bytes()...)
	result = append(result, c.Nickname...)

	return result
}

// DecodeContact reads a Contact back out of a ReceiveContactInfo
// payload.
func DecodeContact(buf *BytesBuffer) (*Contact, error) {
	idBytes, err := buf.ReadExact(UserIDSize)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	nickname, err := buf.ReadRemaining()
	if err != nil {
		return nil, ErrInvalidPayload
	}

	return &Contact{
		ID:       UserIDFromBytes(idBytes),
		Nickname: DecodeText(nickname),
	}, nil
}

// DecodeText lossily decodes payload bytes as UTF-8. Invalid sequences
// become U+FFFD; decoding never fails.
func DecodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
