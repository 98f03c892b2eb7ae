package client

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
)

// Conn is a client connection to a Parley server. Commands are sent
// with the Send* methods; server notifications are decoded by a
// background read loop and delivered into a queue for the consumer
// (typically a UI loop) to poll.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn net.Conn

	queue *NotificationQueue

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	return &Conn{
		queue: NewNotificationQueue(),
		log:   log,
	}
}

// Connect dials the server and starts the notification read loop.
func (c *Conn) Connect(ctx context.Context, addr string) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}

	c.conn = conn

	go c.readLoop()

	return nil
}

// Disconnect tears the connection down. The read loop exits on its
// next read.
func (c *Conn) Disconnect() error {
	c.cancel()
	return c.conn.Close()
}

// Notifications is the queue the read loop delivers into.
func (c *Conn) Notifications() *NotificationQueue {
	return c.queue
}

// SendRegister asks the server to create an account.
func (c *Conn) SendRegister(username, nickname, password string) error {
	return protocol.WriteCommand(c.conn, &protocol.RegisterCommand{
		Username: username,
		Nickname: nickname,
		Password: password,
	})
}

// SendConnect authenticates this connection as an existing user.
func (c *Conn) SendConnect(username, password string) error {
	return protocol.WriteCommand(c.conn, &protocol.ConnectCommand{
		Username: username,
		Password: password,
	})
}

// SendRequestContact looks another user up by username.
func (c *Conn) SendRequestContact(username string) error {
	return protocol.WriteCommand(c.conn, &protocol.RequestContactCommand{
		Username: username,
	})
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	for {
		select {
		case <-c.ctx.Done():
			log.Info("Context cancelled, exiting...")
			return

		default:
			notif, err := protocol.ReadNotification(c.conn)
			if err != nil {
				log.Warn("Failed to read server notification", zap.Error(err))
				return
			}

			// Payload presence comes from the tag table, not the wire.
			payload := protocol.EmptyBytesBuffer()
			if notif.HasPayload() {
				payload, err = protocol.ReadNotificationPayload(c.conn)
				if err != nil {
					log.Warn("Failed to read notification payload",
						zap.Stringer("notification", notif),
						zap.Error(err))
					return
				}
			}

			c.queue.Push(notif, payload)
		}
	}
}
