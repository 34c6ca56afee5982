// pkg/gateway/errors.go
package gateway

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// 配置错误
	ErrInvalidConfig = errors.New("gateway: invalid config")

	// 可恢复错误，由会话状态机内部处理
	ErrMalformedPayload   = errors.New("gateway: malformed payload")
	ErrZombieConnection   = errors.New("gateway: heartbeat not acknowledged")
	ErrInvalidSession     = errors.New("gateway: invalid session")
	ErrTransportClosed    = errors.New("gateway: transport closed unexpectedly")
	ErrReconnectRequested = errors.New("gateway: reconnect requested by server")
	errReidentify         = errors.New("gateway: session must re-identify")

	// 致命错误，交给上层
	ErrResumeBudgetExceeded = errors.New("gateway: reconnect budget exceeded")
	ErrAuthenticationFailed = errors.New("gateway: authentication failed")
	ErrFatalClose           = errors.New("gateway: connection closed with non-retryable code")

	// 使用错误
	ErrSessionClosed = errors.New("gateway: session closed")
	ErrAlreadyOpen   = errors.New("gateway: session already open")
	ErrNotConnected  = errors.New("gateway: not connected")
)

// InvalidSessionError 服务端下发 INVALID_SESSION
type InvalidSessionError struct {
	Resumable bool
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("gateway: invalid session (resumable=%t)", e.Resumable)
}

// Is 使 errors.Is(err, ErrInvalidSession) 成立
func (e *InvalidSessionError) Is(target error) bool {
	return target == ErrInvalidSession
}

// IsFatal 是否为需要交给应用层处理的错误
func IsFatal(err error) bool {
	return errors.IsAny(err, ErrResumeBudgetExceeded, ErrAuthenticationFailed, ErrFatalClose)
}
