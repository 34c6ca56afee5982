package dispatch

import "github.com/cockroachdb/errors"

var (
	// ErrHandlerFailure 处理函数返回错误或 panic
	ErrHandlerFailure = errors.New("dispatch: handler failure")
	// ErrClosed 分发器已关闭
	ErrClosed = errors.New("dispatch: dispatcher closed")
	// ErrDrainTimeout 关闭时未能在超时内处理完队列
	ErrDrainTimeout = errors.New("dispatch: drain timed out")
)
