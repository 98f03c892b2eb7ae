package protocol

import "strings"

// CommandTag identifies a command variant on the wire.
type CommandTag byte

const (
	TagRegister       CommandTag = 0
	TagConnect        CommandTag = 1
	TagRequestContact CommandTag = 2
)

// FieldDelimiter joins the fields of a command payload string. Values
// containing the delimiter are passed through as-is and will corrupt
// positional decoding on the far side.
const FieldDelimiter = ";"

// Command is a client instruction to the server.
type Command interface {
	GetTag() CommandTag

	// payload returns the delimiter-joined payload string that follows
	// the tag on the wire.
	payload() string
}

// RegisterCommand asks the server to create a new account.
type RegisterCommand struct {
	Username string
	Nickname string
	Password string
}

func (c *RegisterCommand) GetTag() CommandTag {
	return TagRegister
}

func (c *RegisterCommand) payload() string {
	return strings.Join([]string{c.Username, c.Nickname, c.Password}, FieldDelimiter)
}

// ConnectCommand authenticates the current connection as an existing
// user.
type ConnectCommand struct {
	Username string
	Password string
}

func (c *ConnectCommand) GetTag() CommandTag {
	return TagConnect
}

func (c *ConnectCommand) payload() string {
	return strings.Join([]string{c.Username, c.Password}, FieldDelimiter)
}

// RequestContactCommand looks another user up by username so the caller
// can add them as a contact.
type RequestContactCommand struct {
	Username string
}

func (c *RequestContactCommand) GetTag() CommandTag {
	return TagRequestContact
}

func (c *RequestContactCommand) payload() string {
	return c.Username
}

var _ Command = (*RegisterCommand)(nil)
var _ Command = (*ConnectCommand)(nil)
var _ Command = (*RequestContactCommand)(nil)
