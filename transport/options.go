package transport

import (
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// NumListeners is the number of accept loops sharing the port.
	// Defaults to the number of CPUs.
	NumListeners int

	// Handler receives every decoded command.
	Handler CommandHandler

	Log *zap.Logger
}
