package protocol

import (
	"encoding/binary"
	"io"
)

// EncodeCommand serialises a command into one complete frame: the tag
// byte followed by the length-prefixed payload string.
func EncodeCommand(cmd Command) []byte {
	buf := EmptyBytesBuffer()
	buf.Write([]byte{byte(cmd.GetTag())})
	WriteString(buf, cmd.payload())

	return buf.Bytes()
}

// WriteCommand writes a command frame in a single contiguous write.
func WriteCommand(w io.Writer, cmd Command) error {
	_, err := w.Write(EncodeCommand(cmd))
	return err
}

// EncodeNotification serialises a notification frame: the tag byte,
// plus a length-prefixed payload for payload-bearing variants. For all
// other variants payload is ignored.
func EncodeNotification(n Notification, payload []byte) []byte {
	buf := EmptyBytesBuffer()
	buf.Write([]byte{byte(n)})

	if n.HasPayload() {
		length := make([]byte, 4)
		binary.BigEndian.PutUint32(length, uint32(len(payload)))

		buf.Write(length)
		buf.Write(payload)
	}

	return buf.Bytes()
}

// WriteNotification writes a notification frame in a single contiguous
// write.
func WriteNotification(w io.Writer, n Notification, payload []byte) error {
	_, err := w.Write(EncodeNotification(n, payload))
	return err
}

// WriteString appends a length-prefixed string to the buffer: a 4 byte
// big-endian length followed by the raw bytes.
func WriteString(buf *BytesBuffer, s string) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(s)))

	buf.Write(length)
	buf.Write([]byte(s))
}
