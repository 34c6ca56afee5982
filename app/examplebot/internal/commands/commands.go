// Package commands 示例机器人的斜杠命令和右键菜单
package commands

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/bot"
	"github.com/lk2023060901/gatecord/pkg/prometheus"
)

// Config 命令配置
type Config struct {
	// Greeting /hello 的回复，可热更新
	Greeting string `mapstructure:"greeting"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{Greeting: "Hello!"}
}

// Set 一组命令及其共享状态
type Set struct {
	greeting atomic.Value // string
	invoked  *prometheus.CounterVec
}

// New 创建命令集，invoked 为 nil 时不统计
func New(cfg *Config, invoked *prometheus.CounterVec) *Set {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Set{invoked: invoked}
	s.SetGreeting(cfg.Greeting)
	return s
}

// SetGreeting 更新 /hello 回复
func (s *Set) SetGreeting(text string) {
	if text == "" {
		text = DefaultConfig().Greeting
	}
	s.greeting.Store(text)
}

// Greeting 当前 /hello 回复
func (s *Set) Greeting() string {
	return s.greeting.Load().(string)
}

// Register 注册全部命令
func (s *Set) Register(c *bot.Client) error {
	specs := []struct {
		spec    *bot.CommandSpec
		handler bot.CommandHandler
	}{
		{bot.NewCommand("hello").Describe("Test"), s.hello},
		{
			bot.NewCommand("foo").Describe("Example command").Option(
				bot.StringOption("message").Describe("Message").Required(),
				bot.IntegerOption("integer").Describe("Integer for math operation"),
			),
			s.foo,
		},
		{bot.NewMessageCommand("info"), s.info},
		{bot.NewUserCommand("fullname"), s.fullname},
	}

	for _, item := range specs {
		if err := c.Command(item.spec, s.count(item.spec.Name, item.handler)); err != nil {
			return errors.Wrapf(err, "register %s", item.spec.Name)
		}
	}
	return nil
}

func (s *Set) count(name string, h bot.CommandHandler) bot.CommandHandler {
	if s.invoked == nil {
		return h
	}
	return func(ctx context.Context, cmd *bot.CommandContext) error {
		s.invoked.WithLabelValues(name).Inc()
		return h(ctx, cmd)
	}
}

func (s *Set) hello(ctx context.Context, cmd *bot.CommandContext) error {
	return cmd.Respond(ctx, s.Greeting())
}

func (s *Set) foo(ctx context.Context, cmd *bot.CommandContext) error {
	message, ok := cmd.String("message")
	if !ok {
		return cmd.RespondEphemeral(ctx, "message is required")
	}
	var integer *int64
	if n, ok := cmd.Int("integer"); ok {
		integer = &n
	}
	return cmd.Respond(ctx, FooReply(message, integer))
}

func (s *Set) info(ctx context.Context, cmd *bot.CommandContext) error {
	msg, ok := cmd.TargetMessage()
	if !ok {
		return cmd.RespondEphemeral(ctx, "no message selected")
	}
	return cmd.Respond(ctx, InfoReply(msg))
}

func (s *Set) fullname(ctx context.Context, cmd *bot.CommandContext) error {
	user, ok := cmd.TargetUser()
	if !ok {
		return cmd.RespondEphemeral(ctx, "no user selected")
	}
	return cmd.Respond(ctx, user.FullName())
}

// FooReply 有整数时附带 integer+2
func FooReply(message string, integer *int64) string {
	if integer == nil {
		return message
	}
	return fmt.Sprintf("%s | %d", message, *integer+2)
}

// InfoReply 消息内容、频道和 id，每项一行
func InfoReply(msg *bot.Message) string {
	return strings.Join([]string{
		"Content: " + msg.Content,
		"Channel id: " + msg.ChannelID,
		"Id: " + msg.ID,
	}, "\n")
}
