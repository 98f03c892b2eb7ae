package transport

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
	"github.com/luma/parley/storage"
)

// Session is the per-connection state a handler may mutate: the socket
// itself and the identity established by a successful connect. UserID
// stays nil until the connection authenticates.
type Session struct {
	Conn   net.Conn
	UserID *protocol.UserID
}

// Response is the single notification written back for a command,
// with a payload for the variants that carry one.
type Response struct {
	Notification protocol.Notification
	Payload      []byte
}

func respond(n protocol.Notification) Response {
	return Response{Notification: n}
}

// CommandHandler is the seam between the wire loop and the business
// rules. ChatHandler is the only implementation today; a persistent
// backend can slot in without any protocol change.
type CommandHandler interface {
	HandleRegister(cmd *protocol.RegisterCommand) Response
	HandleConnect(cmd *protocol.ConnectCommand, session *Session) Response
	HandleRequestContact(username string) Response
}

// Dispatch routes a decoded command to its handler method.
func Dispatch(handler CommandHandler, cmd protocol.Command, session *Session) Response {
	switch c := cmd.(type) {
	case *protocol.RegisterCommand:
		return handler.HandleRegister(c)

	case *protocol.ConnectCommand:
		return handler.HandleConnect(c, session)

	case *protocol.RequestContactCommand:
		return handler.HandleRequestContact(c.Username)

	default:
		return respond(protocol.NotifUnknownCommand)
	}
}

// ChatHandler implements the registration, authentication and contact
// lookup rules over a shared user directory.
type ChatHandler struct {
	store storage.UserStore
	ids   *storage.UserIDGenerator

	// Sockets of authenticated users, by id. Populated on connect as
	// the slot for future server-initiated pushes; no current command
	// writes to a peer's socket.
	socketsMu sync.RWMutex
	sockets   map[protocol.UserID]net.Conn

	log *zap.Logger
}

func NewChatHandler(store storage.UserStore, log *zap.Logger) *ChatHandler {
	var start protocol.UserID
	if max, ok := store.MaxUserID(); ok {
		start = max + 1
	}

	return &ChatHandler{
		store:   store,
		ids:     storage.NewUserIDGenerator(start),
		sockets: make(map[protocol.UserID]net.Conn),
		log:     log,
	}
}

// Store exposes the directory backing this handler.
func (h *ChatHandler) Store() storage.UserStore {
	return h.store
}

func (h *ChatHandler) HandleRegister(cmd *protocol.RegisterCommand) Response {
	account := storage.Account{
		User: protocol.User{
			ID:       h.ids.NextID(),
			Username: cmd.Username,
			Nickname: cmd.Nickname,
		},
		Password: cmd.Password,
	}

	if err := h.store.AddUser(account); err != nil {
		if !errors.Is(err, storage.ErrUsernameTaken) {
			h.log.Error("Failed to store account",
				zap.String("username", cmd.Username),
				zap.Error(err))
		}

		return respond(protocol.NotifUserAlreadyExist)
	}

	h.log.Info("Registered user",
		zap.String("username", account.User.Username),
		zap.Uint32("id", uint32(account.User.ID)))

	return respond(protocol.NotifUserRegistred)
}

func (h *ChatHandler) HandleConnect(cmd *protocol.ConnectCommand, session *Session) Response {
	if session.UserID != nil {
		return respond(protocol.NotifUserIsAlreadyConnected)
	}

	account, err := h.store.FindByUsername(cmd.Username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.log.Error("Failed to look up account",
				zap.String("username", cmd.Username),
				zap.Error(err))
		}

		return respond(protocol.NotifUserNotFound)
	}

	if account.Password != cmd.Password {
		return respond(protocol.NotifUserPasswordIncorrect)
	}

	id := account.User.ID
	session.UserID = &id
	h.registerSocket(id, session.Conn)

	h.log.Info("User connected",
		zap.String("username", account.User.Username),
		zap.Uint32("id", uint32(id)))

	return Response{
		Notification: protocol.NotifUserConnected,
		Payload:      account.User.Encode(),
	}
}

func (h *ChatHandler) HandleRequestContact(username string) Response {
	account, err := h.store.FindByUsername(username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.log.Error("Failed to look up contact",
				zap.String("username", username),
				zap.Error(err))
		}

		return respond(protocol.NotifUserNotFound)
	}

	// No self-contact check here: rejecting "add myself" is client
	// policy, the server answers any registered username.
	contact := protocol.Contact{
		ID:       account.User.ID,
		Nickname: account.User.Nickname,
	}

	return Response{
		Notification: protocol.NotifReceiveContactInfo,
		Payload:      contact.Encode(),
	}
}

func (h *ChatHandler) registerSocket(id protocol.UserID, conn net.Conn) {
	h.socketsMu.Lock()
	defer h.socketsMu.Unlock()

	h.sockets[id] = conn
}

// RegisteredConn returns the socket recorded for an authenticated
// user, if any.
func (h *ChatHandler) RegisteredConn(id protocol.UserID) (net.Conn, bool) {
	h.socketsMu.RLock()
	defer h.socketsMu.RUnlock()

	conn, ok := h.sockets[id]
	return conn, ok
}

var _ CommandHandler = (*ChatHandler)(nil)
