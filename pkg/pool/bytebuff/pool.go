// pkg/pool/bytebuff/pool.go
// 基于 valyala/bytebufferpool 的缓冲池，附带统计
package bytebuff

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// ByteBuffer 池化的缓冲区
type ByteBuffer = bytebufferpool.ByteBuffer

// Pool 缓冲池，容量由 bytebufferpool 按使用情况自动校准
type Pool struct {
	pool bytebufferpool.Pool

	gets uint64
	puts uint64
}

// defaultPool 是默认的全局池
var defaultPool = NewPool()

// NewPool 创建缓冲池
func NewPool() *Pool {
	return &Pool{}
}

// Get 从池中获取一个已清空的 ByteBuffer
func (p *Pool) Get() *ByteBuffer {
	atomic.AddUint64(&p.gets, 1)
	return p.pool.Get()
}

// Put 归还 ByteBuffer，之后不能再使用 buf
func (p *Pool) Put(buf *ByteBuffer) {
	if buf == nil {
		return
	}
	atomic.AddUint64(&p.puts, 1)
	p.pool.Put(buf)
}

// Stats 返回池的统计信息
func (p *Pool) Stats() (gets, puts uint64) {
	return atomic.LoadUint64(&p.gets), atomic.LoadUint64(&p.puts)
}

// Get 从默认池中获取一个 ByteBuffer
func Get() *ByteBuffer {
	return defaultPool.Get()
}

// Put 将 ByteBuffer 归还到默认池中
func Put(buf *ByteBuffer) {
	defaultPool.Put(buf)
}

// Stats 返回默认池的统计信息
func Stats() (gets, puts uint64) {
	return defaultPool.Stats()
}
