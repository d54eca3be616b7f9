package telegram

import (
	"testing"

	"github.com/m3rciful/pointshop/core/telegram/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidates(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.RegisterCommand("/start", commands.Command{Description: "x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.RegisterCommand("/start", commands.Command{Handler: noop}), ErrInvalidRegistration)

	require.NoError(t, r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Open the shop", Aliases: []string{"shop"}}))
	assert.ErrorIs(t, r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "again"}), ErrDuplicate)
	assert.ErrorIs(t, r.RegisterCommand("/shop", commands.Command{Handler: noop, Description: "clash"}), ErrDuplicate)
}

func TestLookupCommand(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCommand("/resolve", commands.Command{Handler: noop, Description: "Resolve", Aliases: []string{"/fix"}}))

	for _, text := range []string{"/resolve", "resolve", "/resolve@pointshop_bot", "/resolve abc-123", "/fix", " /fix@pointshop_bot 1 "} {
		name, _, ok := r.LookupCommand(text)
		assert.True(t, ok, text)
		assert.Equal(t, "/resolve", name, text)
	}
	for _, text := range []string{"", "/cart", "hello"} {
		_, _, ok := r.LookupCommand(text)
		assert.False(t, ok, text)
	}
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Open"}))
	require.NoError(t, r.RegisterCommand("/cart", commands.Command{Handler: noop, Description: "Cart"}))
	require.NoError(t, r.RegisterCommand("/reconcile", commands.Command{Handler: noop, Description: "Admin", AdminOnly: true}))
	require.NoError(t, r.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true}))

	assert.Equal(t, []tele.Command{{Text: "/cart", Description: "Cart"}, {Text: "/start", Description: "Open"}}, r.ListCommands(true))
	assert.Len(t, r.ListCommands(false), 4)

	all := r.Commands()
	delete(all, "/start")
	_, _, ok := r.LookupCommand("/start")
	assert.True(t, ok, "Commands returns a copy")
}

func TestCallbacks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCallback("cart_add", noop))
	require.NoError(t, r.RegisterCallback("nav", noop))
	assert.ErrorIs(t, r.RegisterCallback("nav", noop), ErrDuplicate)
	assert.ErrorIs(t, r.RegisterCallback("", noop), ErrInvalidRegistration)

	_, ok := r.GetCallback("cart_add")
	assert.True(t, ok)
	assert.Equal(t, []string{"cart_add", "nav"}, r.ListCallbacks())

	def := r.CallbackNotFound()
	r.SetCallbackNotFound(nil)
	assert.NotNil(t, r.CallbackNotFound())
	assert.NotNil(t, def)
}
