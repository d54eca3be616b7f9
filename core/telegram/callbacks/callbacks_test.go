package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type cbContext struct {
	tele.Context
	cb        *tele.Callback
	store     map[string]any
	responses []*tele.CallbackResponse
}

func newCB(unique, data string) *cbContext {
	return &cbContext{cb: &tele.Callback{Unique: unique, Data: data}, store: map[string]any{}}
}

func (c *cbContext) Callback() *tele.Callback { return c.cb }
func (c *cbContext) Get(k string) any         { return c.store[k] }
func (c *cbContext) Set(k string, v any)      { c.store[k] = v }

func (c *cbContext) Respond(resp ...*tele.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func TestSplit(t *testing.T) {
	u, p := Split(&tele.Callback{Unique: "cart_add", Data: "7"})
	assert.Equal(t, "cart_add", u)
	assert.Equal(t, "7", p)

	u, p = Split(&tele.Callback{Data: "\fnav|next"})
	assert.Equal(t, "nav", u)
	assert.Equal(t, "next", p)

	u, p = Split(&tele.Callback{Data: "order"})
	assert.Equal(t, "order", u)
	assert.Empty(t, p)

	u, p = Split(nil)
	assert.Empty(t, u+p)
}

func TestID(t *testing.T) {
	id, err := ID(newCB("cart_add", "42"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, data := range []string{"", "x", "0", "-3"} {
		_, err := ID(newCB("cart_add", data))
		assert.ErrorIs(t, err, ErrBadPayload, data)
	}
}

func TestRespondOnce(t *testing.T) {
	c := newCB("order", "")
	require.NoError(t, Alert(c, "out of stock"))
	require.NoError(t, Ack(c))
	require.NoError(t, Toast(c, "ignored"))

	require.Len(t, c.responses, 1)
	assert.True(t, c.responses[0].ShowAlert)
	assert.True(t, Responded(c))
}

func TestAckWithoutCallback(t *testing.T) {
	c := newCB("", "")
	c.cb = nil
	assert.NoError(t, Ack(c))
	assert.Empty(t, c.responses)
}
