package bot

import "github.com/cockroachdb/errors"

var (
	ErrInvalidConfig    = errors.New("bot: invalid config")
	ErrAlreadyConnected = errors.New("bot: already connected")
	ErrClosed           = errors.New("bot: client closed")
	ErrInvalidCommand   = errors.New("bot: invalid command")
	ErrDuplicateCommand = errors.New("bot: duplicate command")
	ErrNoResourceClient = errors.New("bot: no resource client configured")
	ErrNoApplicationID  = errors.New("bot: application id unknown")
	ErrAlreadyResponded = errors.New("bot: interaction already responded")
)
