// pkg/gateway/payload.go
package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/compress"
	"github.com/lk2023060901/gatecord/pkg/transport"
)

// frameCodecs 文本帧直通，二进制帧为按帧 zlib 压缩
var frameCodecs = map[transport.FrameType]compress.Compressor{
	transport.FrameText:   compress.MustNew(compress.TypeNone),
	transport.FrameBinary: compress.MustNew(compress.TypeZlib),
}

// Payload 网关信封
type Payload struct {
	Op       Opcode
	Sequence *int64
	Event    string
	Data     json.RawMessage
}

// wirePayload 线上格式，op 用指针区分缺失和 0
type wirePayload struct {
	Op   *int            `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s"`
	Type *string         `json:"t"`
}

// outgoingPayload 发送格式，d 必须存在（允许为 null）
type outgoingPayload struct {
	Op   Opcode `json:"op"`
	Data any    `json:"d"`
	Seq  *int64 `json:"s,omitempty"`
}

// DecodePayload 解析一帧文本
// 不是 JSON 对象或缺少 op 时返回 ErrMalformedPayload；未知 op 正常返回
func DecodePayload(raw []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.Wrap(ErrMalformedPayload, "envelope is not a JSON object")
	}

	var w wirePayload
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode envelope"), ErrMalformedPayload)
	}
	if w.Op == nil {
		return nil, errors.Wrap(ErrMalformedPayload, "missing op")
	}

	p := &Payload{
		Op:       Opcode(*w.Op),
		Sequence: w.Seq,
		Data:     w.Data,
	}
	if w.Type != nil {
		p.Event = *w.Type
	}
	if bytes.Equal(p.Data, []byte("null")) {
		p.Data = nil
	}
	return p, nil
}

// EncodePayload 序列化一个待发送的 payload
func EncodePayload(op Opcode, data any, seq *int64) ([]byte, error) {
	raw, err := json.Marshal(outgoingPayload{Op: op, Data: data, Seq: seq})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", op)
	}
	return raw, nil
}

// DecodeFrame 解析一帧，二进制帧视为 zlib 压缩的 payload
func DecodeFrame(frame transport.Frame) (*Payload, error) {
	codec, ok := frameCodecs[frame.Type]
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPayload, "unsupported %s frame", frame.Type)
	}
	raw, err := codec.Decompress(frame.Data)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode %s frame", codec.Name()), ErrMalformedPayload)
	}
	return DecodePayload(raw)
}

// Unmarshal 将 d 解析到 v
func (p *Payload) Unmarshal(v any) error {
	if len(p.Data) == 0 {
		return errors.Wrapf(ErrMalformedPayload, "%s payload has no data", p.Op)
	}
	if err := json.Unmarshal(p.Data, v); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s data", p.Op), ErrMalformedPayload)
	}
	return nil
}
