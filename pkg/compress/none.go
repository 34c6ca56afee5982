// pkg/compress/none.go
package compress

// noneCompressor 文本帧直通，不复制
// 返回值与输入共享底层数组，调用方不得再修改输入
type noneCompressor struct{}

func (noneCompressor) Compress(src []byte) ([]byte, error)   { return src, nil }
func (noneCompressor) Decompress(src []byte) ([]byte, error) { return src, nil }
func (noneCompressor) Name() string                          { return string(TypeNone) }
