package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/parley/protocol"
)

var _ = Describe("UserID", func() {
	It("encodes big-endian in exactly 4 bytes", func() {
		Expect(protocol.UserID(1).Bytes()).To(Equal([]byte{0, 0, 0, 1}))
		Expect(protocol.UserID(0).Bytes()).To(Equal([]byte{0, 0, 0, 0}))
		Expect(protocol.UserID(0x01020304).Bytes()).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("round-trips across the value range", func() {
		for _, id := range []protocol.UserID{0, 1, 255, 256, 570234, 1<<32 - 1} {
			Expect(protocol.UserIDFromBytes(id.Bytes())).To(Equal(id))
		}
	})
})

var _ = Describe("User", func() {
	It("encodes as id then username;nickname", func() {
		user := &protocol.User{ID: 2, Username: "alice", Nickname: "Alice"}

		Expect(user.Encode()).To(Equal(append([]byte{0, 0, 0, 2}, []byte("alice;Alice")...)))
	})

	It("round-trips with multi-byte nicknames", func() {
		user := &protocol.User{ID: 99, Username: "alice", Nickname: "Álice ✨"}

		decoded, err := protocol.DecodeUser(protocol.NewBytesBuffer(user.Encode()))
		Expect(err).To(Succeed())
		Expect(decoded).To(Equal(user))
	})

	It("fails to decode when the delimiter is missing", func() {
		payload := append(protocol.UserID(1).Bytes(), []byte("nodelimiter")...)

		_, err := protocol.DecodeUser(protocol.NewBytesBuffer(payload))
		Expect(err).To(MatchError(protocol.ErrInvalidPayload))
	})

	It("fails to decode a payload shorter than an id", func() {
		_, err := protocol.DecodeUser(protocol.NewBytesBuffer([]byte{0, 0}))
		Expect(err).To(MatchError(protocol.ErrInvalidPayload))
	})
})

var _ = Describe("Contact", func() {
	It("encodes as id then raw nickname bytes, no delimiter", func() {
		contact := &protocol.Contact{ID: 5, Nickname: "BobNick"}

		Expect(contact.Encode()).To(Equal(append([]byte{0, 0, 0, 5}, []byte("BobNick")...)))
	})

	It("round-trips with multi-byte nicknames", func() {
		contact := &protocol.Contact{ID: 8, Nickname: "ボブ"}

		decoded, err := protocol.DecodeContact(protocol.NewBytesBuffer(contact.Encode()))
		Expect(err).To(Succeed())
		Expect(decoded).To(Equal(contact))
	})

	It("fails to decode when the nickname is absent", func() {
		_, err := protocol.DecodeContact(protocol.NewBytesBuffer(protocol.UserID(5).Bytes()))
		Expect(err).To(MatchError(protocol.ErrInvalidPayload))
	})
})
