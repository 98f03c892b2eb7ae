package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrUnknownCommand      = errors.New("Unknown command tag")
	ErrInvalidPayload      = errors.New("Command payload is malformed")
	ErrMissingCommandData  = errors.New("Peer closed or sent a short frame")
	ErrUnknownNotification = errors.New("Unknown notification tag")
)

// ReadCommand reads one command frame from the provided Reader and
// decodes it: 1 tag byte, 4 length bytes, then exactly length payload
// bytes. A zero-byte read on the tag or length means the peer closed
// or sent a short frame; that is ErrMissingCommandData and fatal to
// the connection. Parse failures (ErrUnknownCommand,
// ErrInvalidPayload) are recoverable per-request.
//
// To avoid denial of service attacks, the provided Reader should be an
// io.LimitReader or similar to bound the size of frames.
func ReadCommand(r io.Reader) (Command, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, fmt.Errorf("Failed to read command tag: %w", ErrMissingCommandData)
	}

	var lengthBytes [4]byte
	if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
		return nil, fmt.Errorf("Failed to read command length: %w", ErrMissingCommandData)
	}

	payload := make([]byte, binary.BigEndian.Uint32(lengthBytes[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("Failed to read command payload: %w", ErrMissingCommandData)
	}

	// Reassemble tag+payload and hand the lot to the command decoder.
	buf := EmptyBytesBuffer()
	buf.Write(tag[:])
	buf.Write(payload)

	return DecodeCommand(buf)
}

// DecodeCommand decodes a command from a buffer holding the tag byte
// followed by the raw payload (no length prefix; the frame reader has
// already consumed it).
func DecodeCommand(buf *BytesBuffer) (Command, error) {
	tag, err := buf.ReadExact(1)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	switch CommandTag(tag[0]) {
	case TagRegister:
		return decodeRegister(buf)

	case TagConnect:
		return decodeConnect(buf)

	case TagRequestContact:
		return decodeRequestContact(buf)

	default:
		return nil, fmt.Errorf("Failed to decode tag %d: %w", tag[0], ErrUnknownCommand)
	}
}

func decodeRegister(buf *BytesBuffer) (Command, error) {
	fields, err := payloadFields(buf, 3)
	if err != nil {
		return nil, err
	}

	return &RegisterCommand{
		Username: fields[0],
		Nickname: fields[1],
		Password: fields[2],
	}, nil
}

func decodeConnect(buf *BytesBuffer) (Command, error) {
	fields, err := payloadFields(buf, 2)
	if err != nil {
		return nil, err
	}

	return &ConnectCommand{
		Username: fields[0],
		Password: fields[1],
	}, nil
}

func decodeRequestContact(buf *BytesBuffer) (Command, error) {
	data, err := buf.ReadRemaining()
	if err != nil {
		return nil, ErrInvalidPayload
	}

	return &RequestContactCommand{Username: DecodeText(data)}, nil
}

// payloadFields drains the buffer and splits it positionally on the
// field delimiter. Extra trailing fields are silently ignored.
func payloadFields(buf *BytesBuffer, want int) ([]string, error) {
	data, err := buf.ReadRemaining()
	if err != nil {
		return nil, ErrInvalidPayload
	}

	fields := strings.Split(DecodeText(data), FieldDelimiter)
	if len(fields) < want {
		return nil, fmt.Errorf("Payload has %d of %d fields: %w",
			len(fields), want, ErrInvalidPayload)
	}

	return fields[:want], nil
}

// ReadNotification reads the single tag byte that starts every
// notification frame. Whether a payload follows is decided by the
// returned variant, not by the wire; see Notification.HasPayload.
func ReadNotification(r io.Reader) (Notification, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, fmt.Errorf("Failed to read notification tag: %w", err)
	}

	return NotificationFromByte(tag[0])
}

// ReadNotificationPayload reads the length-prefixed payload that
// follows the tag of a payload-bearing notification.
func ReadNotificationPayload(r io.Reader) (*BytesBuffer, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
		return nil, fmt.Errorf("Failed to read notification payload length: %w", err)
	}

	payload := make([]byte, binary.BigEndian.Uint32(lengthBytes[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("Failed to read notification payload: %w", err)
	}

	return NewBytesBuffer(payload), nil
}
