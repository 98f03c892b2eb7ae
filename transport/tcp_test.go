package transport_test

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
	"github.com/luma/parley/storage"
	"github.com/luma/parley/transport"
)

// Each spec gets its own port so closed listeners from earlier specs
// can't interfere.
var nextPort uint32 = 6700

func makeTCPServer() (*transport.TCP, *transport.ChatHandler, string) {
	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	handler := transport.NewChatHandler(storage.NewInmemoryStore(), log.Named("handler"))

	port := int(atomic.AddUint32(&nextPort, 1))

	tcp := transport.NewTCP(transport.Options{
		Log:          log,
		NumListeners: 1,
		Port:         port,
		Reuseport:    true,
		Handler:      handler,
	})

	Expect(tcp.Start(context.Background())).To(Succeed())

	// Wait for the TCP server to be listening.
	time.Sleep(100 * time.Millisecond)

	return tcp, handler, fmt.Sprintf("0.0.0.0:%d", port)
}

// exchange writes one command frame and reads back the notification
// and, when the tag says so, its payload.
func exchange(conn net.Conn, cmd protocol.Command) (protocol.Notification, *protocol.BytesBuffer) {
	Expect(protocol.WriteCommand(conn, cmd)).To(Succeed())

	notif, err := protocol.ReadNotification(conn)
	Expect(err).To(Succeed())

	if !notif.HasPayload() {
		return notif, protocol.EmptyBytesBuffer()
	}

	payload, err := protocol.ReadNotificationPayload(conn)
	Expect(err).To(Succeed())

	return notif, payload
}

var _ = Describe("transport / TCP", func() {
	var (
		tcp     *transport.TCP
		handler *transport.ChatHandler
		conn    net.Conn
	)

	BeforeEach(func() {
		var addr string
		tcp, handler, addr = makeTCPServer()

		var err error
		conn, err = net.Dial("tcp", addr)
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		conn.Close()
		Expect(tcp.Close()).To(Succeed())
	})

	Describe("Register", func() {
		It("registers a new user", func() {
			notif, _ := exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})
			Expect(notif).To(Equal(protocol.NotifUserRegistred))

			account, err := handler.Store().FindByUsername("alice")
			Expect(err).To(Succeed())
			Expect(account.User.Nickname).To(Equal("Alice"))
		})

		It("rejects a duplicate username whatever the other fields say", func() {
			notif, _ := exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})
			Expect(notif).To(Equal(protocol.NotifUserRegistred))

			notif, _ = exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Other", Password: "pw2",
			})
			Expect(notif).To(Equal(protocol.NotifUserAlreadyExist))
		})
	})

	Describe("Connect", func() {
		It("rejects an unregistered username", func() {
			notif, _ := exchange(conn, &protocol.ConnectCommand{
				Username: "alice", Password: "wrong",
			})
			Expect(notif).To(Equal(protocol.NotifUserNotFound))
		})

		It("rejects a wrong password", func() {
			notif, _ := exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})
			Expect(notif).To(Equal(protocol.NotifUserRegistred))

			notif, _ = exchange(conn, &protocol.ConnectCommand{
				Username: "alice", Password: "wrong",
			})
			Expect(notif).To(Equal(protocol.NotifUserPasswordIncorrect))
		})

		It("authenticates with the right password and returns the user", func() {
			exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})

			notif, payload := exchange(conn, &protocol.ConnectCommand{
				Username: "alice", Password: "pw1",
			})
			Expect(notif).To(Equal(protocol.NotifUserConnected))

			user, err := protocol.DecodeUser(payload)
			Expect(err).To(Succeed())
			Expect(user.Username).To(Equal("alice"))
			Expect(user.Nickname).To(Equal("Alice"))

			// The socket is recorded for future server pushes.
			_, registered := handler.RegisteredConn(user.ID)
			Expect(registered).To(BeTrue())
		})

		It("rejects a second connect on an authenticated connection", func() {
			exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})
			exchange(conn, &protocol.ConnectCommand{Username: "alice", Password: "pw1"})

			notif, _ := exchange(conn, &protocol.ConnectCommand{
				Username: "alice", Password: "pw1",
			})
			Expect(notif).To(Equal(protocol.NotifUserIsAlreadyConnected))
		})
	})

	Describe("RequestContact", func() {
		It("rejects an unregistered username", func() {
			notif, _ := exchange(conn, &protocol.RequestContactCommand{Username: "bob"})
			Expect(notif).To(Equal(protocol.NotifUserNotFound))
		})

		It("returns the contact of a registered user", func() {
			exchange(conn, &protocol.RegisterCommand{
				Username: "bob", Nickname: "BobNick", Password: "pw2",
			})

			notif, payload := exchange(conn, &protocol.RequestContactCommand{Username: "bob"})
			Expect(notif).To(Equal(protocol.NotifReceiveContactInfo))

			contact, err := protocol.DecodeContact(payload)
			Expect(err).To(Succeed())
			Expect(contact.Nickname).To(Equal("BobNick"))
		})

		It("lets a user request themselves; rejection is client policy", func() {
			exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})
			exchange(conn, &protocol.ConnectCommand{Username: "alice", Password: "pw1"})

			notif, _ := exchange(conn, &protocol.RequestContactCommand{Username: "alice"})
			Expect(notif).To(Equal(protocol.NotifReceiveContactInfo))
		})
	})

	Describe("malformed frames", func() {
		It("answers an unknown tag with UnknownCommand and keeps the session alive", func() {
			frame := []byte{42, 0, 0, 0, 1, 'x'}
			_, err := conn.Write(frame)
			Expect(err).To(Succeed())

			notif, err := protocol.ReadNotification(conn)
			Expect(err).To(Succeed())
			Expect(notif).To(Equal(protocol.NotifUnknownCommand))

			// Still usable afterwards.
			notif, _ = exchange(conn, &protocol.RegisterCommand{
				Username: "alice", Nickname: "Alice", Password: "pw1",
			})
			Expect(notif).To(Equal(protocol.NotifUserRegistred))
		})

		It("answers a short payload with InvalidPayload and keeps the session alive", func() {
			frame := []byte{byte(protocol.TagRegister), 0, 0, 0, 5}
			frame = append(frame, []byte("alice")...)

			_, err := conn.Write(frame)
			Expect(err).To(Succeed())

			notif, err := protocol.ReadNotification(conn)
			Expect(err).To(Succeed())
			Expect(notif).To(Equal(protocol.NotifInvalidPayload))

			notif, _ = exchange(conn, &protocol.ConnectCommand{Username: "x", Password: "y"})
			Expect(notif).To(Equal(protocol.NotifUserNotFound))
		})

		It("closes the connection on a truncated frame", func() {
			// Length says 10 bytes follow, then the client goes away.
			_, err := conn.Write([]byte{byte(protocol.TagConnect), 0, 0, 0, 10, 'a'})
			Expect(err).To(Succeed())
			Expect(conn.(*net.TCPConn).CloseWrite()).To(Succeed())

			waitForClose(conn)
		})
	})

	It("keeps sessions independent across connections", func() {
		exchange(conn, &protocol.RegisterCommand{
			Username: "alice", Nickname: "Alice", Password: "pw1",
		})
		exchange(conn, &protocol.ConnectCommand{Username: "alice", Password: "pw1"})

		other, err := net.Dial("tcp", conn.RemoteAddr().String())
		Expect(err).To(Succeed())
		defer other.Close()

		// The second connection is unauthenticated and may connect.
		notif, _ := exchange(other, &protocol.ConnectCommand{
			Username: "alice", Password: "pw1",
		})
		Expect(notif).To(Equal(protocol.NotifUserConnected))
	})
})

func waitForClose(conn net.Conn) {
	// Wait for our client to be disconnected by the server
	timeout := time.After(30 * time.Second)

waitForClose:
	for {
		select {
		case <-timeout:
			Fail("The client was never closed by the server")
			break waitForClose

		case <-time.After(10 * time.Millisecond):
			one := make([]byte, 1)
			Expect(conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))).To(Succeed())

			if _, err := conn.Read(one); err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}

				break waitForClose
			}
		}
	}
}
