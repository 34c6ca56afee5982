package commands

import (
	"testing"

	"github.com/lk2023060901/gatecord/pkg/bot"
	"github.com/stretchr/testify/assert"
)

func TestFooReply(t *testing.T) {
	assert.Equal(t, "hi", FooReply("hi", nil))
	n := int64(40)
	assert.Equal(t, "hi | 42", FooReply("hi", &n))
}

func TestInfoReply(t *testing.T) {
	got := InfoReply(&bot.Message{ID: "1", ChannelID: "2", Content: "hey"})
	assert.Equal(t, "Content: hey\nChannel id: 2\nId: 1", got)
}

func TestGreeting(t *testing.T) {
	s := New(&Config{Greeting: "yo"}, nil)
	assert.Equal(t, "yo", s.Greeting())
	s.SetGreeting("")
	assert.Equal(t, "Hello!", s.Greeting())
}

func TestRegister(t *testing.T) {
	cfg := bot.DefaultConfig()
	cfg.Gateway.Token = "t"
	c, err := bot.New(cfg)
	if !assert.NoError(t, err) {
		return
	}
	defer c.Close()

	s := New(nil, nil)
	assert.NoError(t, s.Register(c))
	assert.Equal(t, 4, c.Commands().Len())
	_, _, ok := c.Commands().Lookup(bot.CommandUser, "fullname")
	assert.True(t, ok)
	_, _, ok = c.Commands().Lookup(bot.CommandMessage, "info")
	assert.True(t, ok)

	assert.Error(t, s.Register(c))
}
