// pkg/transport/transport.go
package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// FrameType 帧类型
type FrameType int

const (
	// FrameText UTF-8 文本帧
	FrameText FrameType = 1
	// FrameBinary 二进制帧（压缩后的 payload）
	FrameBinary FrameType = 2
)

// String 返回帧类型的字符串表示
func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame 一帧数据
type Frame struct {
	Type FrameType
	Data []byte
}

// Dialer 建立到网关的双工连接
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Conn 双工连接
//
// Send 可被多个 goroutine 并发调用，实现必须保证写入串行化；
// Receive 只允许一个 goroutine 调用；
// Close 必须让阻塞中的 Receive 尽快返回
type Conn interface {
	ID() string
	Send(ctx context.Context, frame Frame) error
	Receive() (Frame, error)
	Close(code int, reason string) error
}

// 常用关闭码
const (
	CloseNormalClosure = 1000
	CloseGoingAway     = 1001
	CloseAbnormal      = 1006
)

var (
	ErrConnectionClosed = errors.New("transport: connection closed")
	ErrSendQueueFull    = errors.New("transport: send queue full")
	ErrDialFailed       = errors.New("transport: dial failed")
)

// CloseError 对端发送关闭帧或连接异常断开
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("transport: closed with code %d", e.Code)
	}
	return fmt.Sprintf("transport: closed with code %d: %s", e.Code, e.Text)
}

// CloseCode 从错误链中取出关闭码，没有关闭帧时返回 false
func CloseCode(err error) (int, bool) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}
