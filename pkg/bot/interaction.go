// pkg/bot/interaction.go
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

const (
	interactionPing               = 1
	interactionApplicationCommand = 2

	callbackChannelMessage = 4
	flagEphemeral          = 1 << 6
)

// User 交互中出现的用户
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// FullName username#discriminator，新用户名体系下 discriminator 为 "0"
func (u *User) FullName() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// DisplayName 优先使用全局昵称
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Message 消息右键菜单的目标消息
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
}

type interactionOption struct {
	Name    string              `json:"name"`
	Type    OptionType          `json:"type"`
	Value   json.RawMessage     `json:"value,omitempty"`
	Options []interactionOption `json:"options,omitempty"`
}

type interactionData struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     CommandType         `json:"type"`
	TargetID string              `json:"target_id,omitempty"`
	Options  []interactionOption `json:"options,omitempty"`
	Resolved struct {
		Users    map[string]User    `json:"users,omitempty"`
		Messages map[string]Message `json:"messages,omitempty"`
	} `json:"resolved"`
}

type interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Data          interactionData `json:"data"`
	User          *User           `json:"user,omitempty"`
	Member        *struct {
		User *User `json:"user"`
	} `json:"member,omitempty"`
}

type interactionResponse struct {
	Type int                     `json:"type"`
	Data interactionResponseData `json:"data"`
}

type interactionResponseData struct {
	Content string `json:"content"`
	Flags   int    `json:"flags,omitempty"`
}

// CommandContext 一次命令调用
type CommandContext struct {
	ID            string
	Token         string
	ApplicationID string
	GuildID       string
	ChannelID     string
	Name          string
	Type          CommandType
	TargetID      string

	// Invoker 发起命令的用户，可能为 nil
	Invoker *User

	options   map[string]json.RawMessage
	data      *interactionData
	resources ResourceClient
	responded atomic.Bool
}

func newCommandContext(in *interaction, resources ResourceClient) *CommandContext {
	cmd := &CommandContext{
		ID:            in.ID,
		Token:         in.Token,
		ApplicationID: in.ApplicationID,
		GuildID:       in.GuildID,
		ChannelID:     in.ChannelID,
		Name:          in.Data.Name,
		Type:          in.Data.Type,
		TargetID:      in.Data.TargetID,
		Invoker:       in.User,
		options:       make(map[string]json.RawMessage, len(in.Data.Options)),
		data:          &in.Data,
		resources:     resources,
	}
	if cmd.Type == 0 {
		cmd.Type = CommandChatInput
	}
	if cmd.Invoker == nil && in.Member != nil {
		cmd.Invoker = in.Member.User
	}
	for _, opt := range in.Data.Options {
		cmd.options[opt.Name] = opt.Value
	}
	return cmd
}

// Option 参数原始值
func (c *CommandContext) Option(name string) (json.RawMessage, bool) {
	v, ok := c.options[name]
	return v, ok && len(v) > 0
}

func (c *CommandContext) decodeOption(name string, v any) bool {
	raw, ok := c.Option(name)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// String 字符串参数，也用于 user/channel/role 参数的 id
func (c *CommandContext) String(name string) (string, bool) {
	var s string
	ok := c.decodeOption(name, &s)
	return s, ok
}

// Int 整数参数
func (c *CommandContext) Int(name string) (int64, bool) {
	var n int64
	ok := c.decodeOption(name, &n)
	return n, ok
}

// Bool 布尔参数
func (c *CommandContext) Bool(name string) (bool, bool) {
	var b bool
	ok := c.decodeOption(name, &b)
	return b, ok
}

// Float 数值参数
func (c *CommandContext) Float(name string) (float64, bool) {
	var f float64
	ok := c.decodeOption(name, &f)
	return f, ok
}

// TargetUser 用户右键菜单的目标用户
func (c *CommandContext) TargetUser() (*User, bool) {
	if c.Type != CommandUser || c.TargetID == "" {
		return nil, false
	}
	u, ok := c.data.Resolved.Users[c.TargetID]
	if !ok {
		return &User{ID: c.TargetID}, true
	}
	return &u, true
}

// TargetMessage 消息右键菜单的目标消息
func (c *CommandContext) TargetMessage() (*Message, bool) {
	if c.Type != CommandMessage || c.TargetID == "" {
		return nil, false
	}
	m, ok := c.data.Resolved.Messages[c.TargetID]
	if !ok {
		return &Message{ID: c.TargetID}, true
	}
	return &m, true
}

// Respond 回复一条消息，每次交互只能回复一次
func (c *CommandContext) Respond(ctx context.Context, content string) error {
	return c.respond(ctx, content, 0)
}

// RespondEphemeral 回复仅调用者可见的消息
func (c *CommandContext) RespondEphemeral(ctx context.Context, content string) error {
	return c.respond(ctx, content, flagEphemeral)
}

func (c *CommandContext) respond(ctx context.Context, content string, flags int) error {
	if c.resources == nil {
		return ErrNoResourceClient
	}
	if !c.responded.CompareAndSwap(false, true) {
		return ErrAlreadyResponded
	}

	path := fmt.Sprintf("/interactions/%s/%s/callback", c.ID, c.Token)
	resp := interactionResponse{
		Type: callbackChannelMessage,
		Data: interactionResponseData{Content: content, Flags: flags},
	}
	if _, err := c.resources.Post(ctx, path, resp); err != nil {
		c.responded.Store(false)
		return errors.Wrapf(err, "respond to %s", c.Name)
	}
	return nil
}
