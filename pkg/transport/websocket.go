// pkg/transport/websocket.go
package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lk2023060901/gatecord/pkg/logger"
)

// WebsocketDialer 基于 gorilla/websocket 的 Dialer
type WebsocketDialer struct {
	config *Config
	logger logger.Logger
	dialer *websocket.Dialer
}

// NewWebsocketDialer 创建 Dialer
func NewWebsocketDialer(cfg *Config, log logger.Logger) *WebsocketDialer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	normalized := *cfg
	normalized.normalize()
	cfg = &normalized

	return &WebsocketDialer{
		config: cfg,
		logger: logger.OrNoop(log),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			TLSClientConfig:  cfg.TLS,
		},
	}
}

// Dial 建立连接并启动写循环
func (d *WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Mark(errors.Wrapf(err, "dial %s: http status %d", url, resp.StatusCode), ErrDialFailed)
		}
		return nil, errors.Mark(errors.Wrapf(err, "dial %s", url), ErrDialFailed)
	}
	ws.SetReadLimit(d.config.MaxMessageSize)

	c := &wsConn{
		id:           uuid.New().String(),
		conn:         ws,
		logger:       d.logger,
		writeTimeout: d.config.WriteTimeout,
		closeTimeout: d.config.CloseTimeout,
		sendChan:     make(chan *outgoing, d.config.SendQueueSize),
		closeCh:      make(chan struct{}),
	}
	go c.writeLoop()

	d.logger.Debug("transport connected", "conn_id", c.id, "remote_addr", ws.RemoteAddr().String())
	return c, nil
}

type outgoing struct {
	frame Frame
	done  chan error
}

// wsConn websocket 连接封装
// 所有数据帧由 writeLoop 单独写出，控制帧通过 WriteControl 写出
type wsConn struct {
	id   string
	conn *websocket.Conn

	logger       logger.Logger
	writeTimeout time.Duration
	closeTimeout time.Duration

	sendChan  chan *outgoing
	closed    atomic.Bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

// ID 返回连接 ID
func (c *wsConn) ID() string {
	return c.id
}

// Send 入队并等待写出结果
func (c *wsConn) Send(ctx context.Context, frame Frame) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	item := &outgoing{frame: frame, done: make(chan error, 1)}
	select {
	case c.sendChan <- item:
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		return ErrConnectionClosed
	}
}

// Receive 读取下一帧
func (c *wsConn) Receive() (Frame, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			rerr := c.readError(err)
			// 读错误后连接不可再用，释放写循环和底层 socket
			_ = c.Close(CloseAbnormal, "read failed")
			return Frame{}, rerr
		}
		switch msgType {
		case websocket.TextMessage:
			return Frame{Type: FrameText, Data: data}, nil
		case websocket.BinaryMessage:
			return Frame{Type: FrameBinary, Data: data}, nil
		}
	}
}

func (c *wsConn) readError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Text: ce.Text}
	}
	if c.closed.Load() {
		return errors.Mark(errors.Wrap(err, "read after close"), ErrConnectionClosed)
	}
	return errors.Wrap(err, "transport read")
}

// writeLoop 写入循环
func (c *wsConn) writeLoop() {
	for {
		select {
		case item := <-c.sendChan:
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			err := c.conn.WriteMessage(int(item.frame.Type), item.frame.Data)
			item.done <- err
			if err != nil {
				c.logger.Debug("transport write error", "error", err, "conn_id", c.id)
				_ = c.Close(CloseAbnormal, "write failed")
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Close 发送关闭帧并关闭底层连接，可重复调用
// code 为 1000/1001 时服务端会作废会话，需要保留会话时使用 4xxx 码
func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)

		if code != CloseAbnormal {
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(c.closeTimeout),
			)
		}
		err = c.conn.Close()

		c.logger.Debug("transport closed", "conn_id", c.id, "code", code, "reason", reason)
	})
	return err
}
