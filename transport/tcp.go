package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
)

// TCP accepts client connections and runs one Session loop per
// connection, goroutine-per-connection with no connection limit.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr      string
	reuseport bool

	numListeners int
	listeners    []*TCPListener

	handler CommandHandler

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:    options.Reuseport,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		handler:      options.Handler,
		log:          options.Log,
	}
}

func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		w.startListener(ctx, w.addr)
	}

	return nil
}

// Handler exposes the command handler serving this transport.
func (w *TCP) Handler() CommandHandler {
	return w.handler
}

func (w *TCP) startListener(ctx context.Context, addr string) {
	w.stopWaiter.Add(1)
	listener := NewTCPListener(
		ctx,
		addr,
		w.reuseport,
		w.handler,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)

	w.listeners = append(w.listeners, &listener)

	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Listen(); err != nil {
			w.log.Error("Failed to listen", zap.Error(err))
		}
	}()
}

// Close immediately closes all active listeners and connections.
func (w *TCP) Close() (err error) {
	w.log.Info("Stopping TCP server")
	w.cancel()

	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	w.stopWaiter.Wait()
	w.log.Info("Listeners stopped")

	return err
}

type TCPListener struct {
	ctx context.Context

	addr      string
	reuseport bool
	handler   CommandHandler
	log       *zap.Logger

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
}

func NewTCPListener(
	ctx context.Context,
	addr string,
	reusePort bool,
	handler CommandHandler,
	log *zap.Logger,
) TCPListener {
	return TCPListener{
		ctx:         ctx,
		addr:        addr,
		reuseport:   reusePort,
		handler:     handler,
		log:         log,
		activeConns: make(map[*TCPConn]struct{}),
	}
}

func (t *TCPListener) Close() (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conn := range t.activeConns {
		err = multierr.Append(err, conn.Close())
		delete(t.activeConns, conn)
	}

	return err
}

func (t *TCPListener) Listen() error {
	listener, err := t.listen()
	if err != nil {
		return err
	}

	defer listener.Close()

	var loopWaiter sync.WaitGroup

	go func() {
		<-t.ctx.Done()

		t.log.Info("Closing listener")
		if err := listener.Close(); err != nil {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	for {
		select {
		case <-t.ctx.Done():
			t.log.Info("Stopped accepting new connections")
			loopWaiter.Wait()

			t.log.Info("Listener stopped")
			return nil

		default:
			conn, err := listener.Accept()
			if err != nil {
				netOpError := new(net.OpError)

				if errors.As(err, &netOpError) && netOpError.Unwrap().Error() == "use of closed network connection" {
					// The listener was closed while we were waiting
					// for new connections, that's fine.
					loopWaiter.Wait()
					return nil
				}

				return err
			}

			tcpConn := NewTCPConn(t.ctx, conn, t.handler, t.log.Named("conn"))
			t.addConn(tcpConn)

			loopWaiter.Add(1)
			go func() {
				defer loopWaiter.Done()
				defer t.removeConn(tcpConn)

				tcpConn.Serve()
			}()
		}
	}
}

func (t *TCPListener) listen() (net.Listener, error) {
	if t.reuseport {
		return reuseport.Listen("tcp", t.addr)
	}

	return net.Listen("tcp", t.addr)
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

// TCPConn runs the per-connection state machine: read one command
// frame, dispatch it, write exactly one notification frame back, loop.
// There is no pipelining and no read timeout; a silent peer holds its
// goroutine until the connection or the server closes.
type TCPConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn    net.Conn
	handler CommandHandler
	session *Session

	log *zap.Logger
}

func NewTCPConn(
	parentCtx context.Context,
	conn net.Conn,
	handler CommandHandler,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:     ctx,
		cancel:  cancel,
		conn:    conn,
		handler: handler,
		session: &Session{Conn: conn},
		log:     log,
	}
}

func (t *TCPConn) Close() error {
	t.cancel()
	return t.conn.Close()
}

// Session exposes the connection state the handler mutates.
func (t *TCPConn) Session() *Session {
	return t.session
}

func (t *TCPConn) Serve() {
	log := t.log.With(zap.Stringer("remote", t.conn.RemoteAddr()))

	log.Info("New connection")

	defer func() {
		t.cancel()
		t.conn.Close()

		if t.session.UserID != nil {
			log.Info("User disconnected", zap.Uint32("id", uint32(*t.session.UserID)))
		}
	}()

	for {
		select {
		case <-t.ctx.Done():
			log.Info("Context cancelled, exiting...")
			return

		default:
			cmd, err := protocol.ReadCommand(t.conn)

			var response Response

			switch {
			case err == nil:
				response = Dispatch(t.handler, cmd, t.session)

			case errors.Is(err, protocol.ErrUnknownCommand):
				// A malformed single frame does not kill the session.
				response = respond(protocol.NotifUnknownCommand)

			case errors.Is(err, protocol.ErrInvalidPayload):
				response = respond(protocol.NotifInvalidPayload)

			default:
				// Transport-level failure is fatal to this connection
				// only; the directory and other sessions are
				// untouched.
				log.Info("Session ended", zap.Error(err))
				return
			}

			if err := protocol.WriteNotification(t.conn, response.Notification, response.Payload); err != nil {
				log.Warn("Failed to write notification",
					zap.Stringer("notification", response.Notification),
					zap.Error(err))
				return
			}
		}
	}
}
