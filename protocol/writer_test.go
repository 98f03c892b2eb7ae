package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/parley/protocol"
)

var _ = Describe("Writer", func() {
	Describe("EncodeCommand()", func() {
		It("produces tag, big-endian length, then the joined payload", func() {
			cmd := &protocol.RegisterCommand{
				Username: "a",
				Nickname: "b",
				Password: "c",
			}

			Expect(protocol.EncodeCommand(cmd)).To(Equal([]byte{
				0,          // Register tag
				0, 0, 0, 5, // payload length
				'a', ';', 'b', ';', 'c',
			}))
		})

		It("writes the whole frame in one contiguous write", func() {
			w := &countingWriter{}

			cmd := &protocol.ConnectCommand{Username: "alice", Password: "pw1"}
			Expect(protocol.WriteCommand(w, cmd)).To(Succeed())
			Expect(w.writes).To(Equal(1))
		})
	})

	Describe("EncodeNotification()", func() {
		It("is a bare tag byte for payload-free variants", func() {
			frame := protocol.EncodeNotification(protocol.NotifUserRegistred, nil)
			Expect(frame).To(Equal([]byte{2}))
		})

		It("ignores payload bytes handed to a payload-free variant", func() {
			frame := protocol.EncodeNotification(protocol.NotifUserNotFound, []byte("junk"))
			Expect(frame).To(Equal([]byte{6}))
		})

		It("length-prefixes the payload for payload-bearing variants", func() {
			contact := &protocol.Contact{ID: 1, Nickname: "Bob"}
			frame := protocol.EncodeNotification(protocol.NotifReceiveContactInfo, contact.Encode())

			Expect(frame).To(Equal([]byte{
				8,          // ReceiveContactInfo tag
				0, 0, 0, 7, // payload length: 4 byte id + 3 byte nickname
				0, 0, 0, 1, // contact id
				'B', 'o', 'b',
			}))
		})
	})

	Describe("WriteString()", func() {
		It("writes a 4 byte big-endian length then the raw bytes", func() {
			buf := protocol.EmptyBytesBuffer()
			protocol.WriteString(buf, "hey")

			Expect(buf.Bytes()).To(Equal([]byte{0, 0, 0, 3, 'h', 'e', 'y'}))
		})

		It("counts bytes, not runes", func() {
			buf := protocol.EmptyBytesBuffer()
			protocol.WriteString(buf, "é")

			Expect(buf.Bytes()).To(Equal(append([]byte{0, 0, 0, 2}, []byte("é")...)))
		})
	})
})

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(data []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(data)
}
