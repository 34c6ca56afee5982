// pkg/compress/zlib.go
package compress

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zlib"
	"github.com/lk2023060901/gatecord/pkg/pool/bytebuff"
)

// zlibCompressor zlib 实现，解压时借用池化缓冲区
type zlibCompressor struct{}

// Compress 使用 zlib 压缩数据
func (c *zlibCompressor) Compress(src []byte) ([]byte, error) {
	if src == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, errors.Wrap(err, "zlib write")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "zlib close")
	}
	return buf.Bytes(), nil
}

// Decompress 解压完整的 zlib 数据，返回值不引用池中内存
func (c *zlibCompressor) Decompress(src []byte) ([]byte, error) {
	if src == nil {
		return nil, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "zlib open")
	}
	defer zr.Close()

	buf := bytebuff.Get()
	defer bytebuff.Put(buf)
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, errors.Wrap(err, "zlib inflate")
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

// Name 返回压缩算法名称
func (c *zlibCompressor) Name() string {
	return string(TypeZlib)
}
