// Package rest 示例程序使用的最小 REST 访问实现
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/logger"
)

// DefaultBaseURL API v10
const DefaultBaseURL = "https://discord.com/api/v10"

var ErrUnexpectedStatus = errors.New("rest: unexpected status")

// Config REST 配置
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// Client 实现 bot.ResourceClient
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logger.Logger
}

// New 创建客户端，token 只写入 Authorization 头
func New(cfg *Config, token string, l logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.OrNoop(l).Named("rest"),
	}
}

// Fetch GET /{resourceType}s/{id}，如 Fetch(ctx, "user", "42")
func (c *Client) Fetch(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/"+resourceType+"s/"+id, nil)
}

// Post 以 JSON 提交 payload
func (c *Client) Post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/lk2023060901/gatecord, 1)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", method, path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("request failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, errors.Wrapf(ErrUnexpectedStatus, "%s %s: %d %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}
