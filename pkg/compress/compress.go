// pkg/compress/compress.go
package compress

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrUnsupported 未注册的压缩算法
var ErrUnsupported = errors.New("compress: unsupported type")

// Compressor 压缩器接口
type Compressor interface {
	// Compress 压缩数据
	Compress(src []byte) ([]byte, error)

	// Decompress 解压数据
	Decompress(src []byte) ([]byte, error)

	// Name 返回压缩算法名称
	Name() string
}

// Factory 压缩器工厂函数类型
type Factory func() (Compressor, error)

// Type 压缩算法类型
type Type string

const (
	// TypeNone 不压缩
	TypeNone Type = "none"
	// TypeZlib 网关按帧压缩使用的 zlib
	TypeZlib Type = "zlib"
)

var (
	mu        sync.RWMutex
	factories = make(map[Type]Factory)
)

func init() {
	Register(TypeNone, func() (Compressor, error) {
		return noneCompressor{}, nil
	})
	Register(TypeZlib, func() (Compressor, error) {
		return &zlibCompressor{}, nil
	})
}

// Register 注册压缩器工厂
func Register(t Type, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[t] = factory
}

// Unregister 注销压缩器工厂
func Unregister(t Type) {
	mu.Lock()
	defer mu.Unlock()
	delete(factories, t)
}

// New 创建压缩器
func New(t Type) (Compressor, error) {
	mu.RLock()
	factory, ok := factories[t]
	mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "%q", t)
	}
	return factory()
}

// MustNew 创建压缩器，失败时 panic
func MustNew(t Type) Compressor {
	c, err := New(t)
	if err != nil {
		panic(err)
	}
	return c
}

// IsRegistered 检查压缩算法是否已注册
func IsRegistered(t Type) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[t]
	return ok
}
