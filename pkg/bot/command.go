// pkg/bot/command.go
package bot

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// CommandType 应用命令类型
type CommandType int

const (
	CommandChatInput CommandType = 1 // 斜杠命令
	CommandUser      CommandType = 2 // 用户右键菜单
	CommandMessage   CommandType = 3 // 消息右键菜单
)

func (t CommandType) String() string {
	switch t {
	case CommandChatInput:
		return "chat_input"
	case CommandUser:
		return "user"
	case CommandMessage:
		return "message"
	default:
		return "unknown"
	}
}

// OptionType 命令参数类型
type OptionType int

const (
	OptionString  OptionType = 3
	OptionInteger OptionType = 4
	OptionBoolean OptionType = 5
	OptionUser    OptionType = 6
	OptionChannel OptionType = 7
	OptionRole    OptionType = 8
	OptionNumber  OptionType = 10
)

// OptionSpec 命令参数定义
type OptionSpec struct {
	Type        OptionType `json:"type" validate:"required"`
	Name        string     `json:"name" validate:"required,max=32"`
	Description string     `json:"description" validate:"max=100"`
	IsRequired  bool       `json:"required,omitempty"`
}

func newOption(typ OptionType, name string) *OptionSpec {
	return &OptionSpec{Type: typ, Name: name, Description: name}
}

func StringOption(name string) *OptionSpec  { return newOption(OptionString, name) }
func IntegerOption(name string) *OptionSpec { return newOption(OptionInteger, name) }
func BooleanOption(name string) *OptionSpec { return newOption(OptionBoolean, name) }
func UserOption(name string) *OptionSpec    { return newOption(OptionUser, name) }
func ChannelOption(name string) *OptionSpec { return newOption(OptionChannel, name) }
func RoleOption(name string) *OptionSpec    { return newOption(OptionRole, name) }
func NumberOption(name string) *OptionSpec  { return newOption(OptionNumber, name) }

// Describe 设置参数说明
func (o *OptionSpec) Describe(text string) *OptionSpec {
	o.Description = text
	return o
}

// Required 标记为必填
func (o *OptionSpec) Required() *OptionSpec {
	o.IsRequired = true
	return o
}

// CommandSpec 命令定义，序列化结果直接用于上传
type CommandSpec struct {
	Name        string        `json:"name" validate:"required,max=32"`
	Type        CommandType   `json:"type" validate:"oneof=1 2 3"`
	Description string        `json:"description,omitempty" validate:"max=100"`
	Options     []*OptionSpec `json:"options,omitempty" validate:"dive"`
}

// NewCommand 创建斜杠命令
func NewCommand(name string) *CommandSpec {
	return &CommandSpec{Name: name, Type: CommandChatInput, Description: name}
}

// NewUserCommand 创建用户右键菜单命令
func NewUserCommand(name string) *CommandSpec {
	return &CommandSpec{Name: name, Type: CommandUser}
}

// NewMessageCommand 创建消息右键菜单命令
func NewMessageCommand(name string) *CommandSpec {
	return &CommandSpec{Name: name, Type: CommandMessage}
}

// Describe 设置命令说明，右键菜单命令忽略
func (c *CommandSpec) Describe(text string) *CommandSpec {
	if c.Type == CommandChatInput {
		c.Description = text
	}
	return c
}

// Option 追加参数，只对斜杠命令有效
func (c *CommandSpec) Option(opts ...*OptionSpec) *CommandSpec {
	c.Options = append(c.Options, opts...)
	return c
}

var specValidator = validator.New()

// Validate 检查名称和结构
func (c *CommandSpec) Validate() error {
	if err := specValidator.Struct(c); err != nil {
		return errors.Mark(errors.Wrapf(err, "command %q", c.Name), ErrInvalidCommand)
	}
	if c.Type != CommandChatInput && len(c.Options) > 0 {
		return errors.Wrapf(ErrInvalidCommand, "%s command %q cannot take options", c.Type, c.Name)
	}
	return nil
}

// CommandHandler 命令处理函数
type CommandHandler func(ctx context.Context, cmd *CommandContext) error

type commandKey struct {
	typ  CommandType
	name string
}

type registeredCommand struct {
	spec    *CommandSpec
	handler CommandHandler
}

// CommandRegistry 按 (类型, 名称) 保存命令
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[commandKey]*registeredCommand
	order    []commandKey
}

// NewCommandRegistry 创建命令表
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[commandKey]*registeredCommand)}
}

// Add 注册命令，同类型同名命令只能注册一次
func (r *CommandRegistry) Add(spec *CommandSpec, handler CommandHandler) error {
	if spec == nil || handler == nil {
		return errors.Wrap(ErrInvalidCommand, "spec and handler are required")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	key := commandKey{typ: spec.Type, name: spec.Name}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[key]; ok {
		return errors.Wrapf(ErrDuplicateCommand, "%s command %q", spec.Type, spec.Name)
	}
	r.commands[key] = &registeredCommand{spec: spec, handler: handler}
	r.order = append(r.order, key)
	return nil
}

// Lookup 查找命令
func (r *CommandRegistry) Lookup(typ CommandType, name string) (*CommandSpec, CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[commandKey{typ: typ, name: name}]
	if !ok {
		return nil, nil, false
	}
	return cmd.spec, cmd.handler, true
}

// Specs 按注册顺序返回全部命令定义
func (r *CommandRegistry) Specs() []*CommandSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CommandSpec, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.commands[key].spec)
	}
	return out
}

// Len 已注册命令数量
func (r *CommandRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
