package bot

import (
	"context"
	"time"

	"github.com/m3rciful/pointshop/internal/cart"
	"github.com/m3rciful/pointshop/internal/catalog"
	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"

	tele "gopkg.in/telebot.v4"
)

type sentMsg struct {
	what any
	opts *tele.SendOptions
}

func (m sentMsg) text() string {
	s, _ := m.what.(string)
	return s
}

// fakeContext implements the parts of tele.Context the handlers use.
// Anything else panics through the nil embedded interface.
type fakeContext struct {
	tele.Context
	user      *tele.User
	chat      *tele.Chat
	callback  *tele.Callback
	text      string
	args      []string
	store     map[string]any
	sent      []sentMsg
	edits     []string
	deleted   bool
	responses []*tele.CallbackResponse
}

func newMessage(text string) *fakeContext {
	return &fakeContext{
		user:  &tele.User{ID: 1, FirstName: "Ann", Username: "ann"},
		chat:  &tele.Chat{ID: 100},
		text:  text,
		store: map[string]any{},
	}
}

func newCallback(unique, data string) *fakeContext {
	c := newMessage("")
	c.callback = &tele.Callback{ID: "cb", Unique: unique, Data: data}
	return c
}

func (c *fakeContext) Sender() *tele.User       { return c.user }
func (c *fakeContext) Chat() *tele.Chat         { return c.chat }
func (c *fakeContext) Callback() *tele.Callback { return c.callback }
func (c *fakeContext) Text() string             { return c.text }
func (c *fakeContext) Args() []string           { return c.args }
func (c *fakeContext) Update() tele.Update      { return tele.Update{ID: 7} }
func (c *fakeContext) Get(key string) any       { return c.store[key] }
func (c *fakeContext) Set(key string, v any)    { c.store[key] = v }

func (c *fakeContext) Send(what any, opts ...any) error {
	m := sentMsg{what: what}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			m.opts = so
		}
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeContext) Edit(what any, _ ...any) error {
	s, _ := what.(string)
	c.edits = append(c.edits, s)
	return nil
}

func (c *fakeContext) Delete() error {
	c.deleted = true
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) texts() []string {
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, m.text())
	}
	return out
}

func (c *fakeContext) lastResponse() string {
	if len(c.responses) == 0 {
		return ""
	}
	return c.responses[len(c.responses)-1].Text
}

type fakeAuth struct {
	rec        *domain.AuthorizationRecord
	requireErr error
	submitErr  error
	balance    points.Balance
	began      int
	cancelled  int
	loggedOut  int
	submitted  []string
}

func (a *fakeAuth) Begin(context.Context, int64) error  { a.began++; return nil }
func (a *fakeAuth) Cancel(context.Context, int64) error { a.cancelled++; return nil }
func (a *fakeAuth) Logout(context.Context, int64) error { a.loggedOut++; return nil }

func (a *fakeAuth) SubmitEmail(_ context.Context, _ int64, text string) (*domain.AuthorizationRecord, error) {
	a.submitted = append(a.submitted, text)
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	return a.rec, nil
}

func (a *fakeAuth) Require(context.Context, int64) (*domain.AuthorizationRecord, error) {
	if a.requireErr != nil {
		return nil, a.requireErr
	}
	return a.rec, nil
}

func (a *fakeAuth) Balance(context.Context, *domain.AuthorizationRecord) (points.Balance, error) {
	return a.balance, nil
}

type fakeCatalog struct {
	selectErr  error
	navErr     error
	refreshErr error
	selected   []domain.Category
	moves      []catalog.Direction
	refreshes  int
}

func (f *fakeCatalog) SelectCategory(_ context.Context, _, _ int64, c domain.Category) error {
	f.selected = append(f.selected, c)
	return f.selectErr
}

func (f *fakeCatalog) Navigate(_ context.Context, _ int64, d catalog.Direction) error {
	f.moves = append(f.moves, d)
	return f.navErr
}

func (f *fakeCatalog) Refresh(context.Context, int64) error {
	f.refreshes++
	return f.refreshErr
}

type fakeCart struct {
	addErr  error
	view    cart.View
	viewErr error
	count   int64
	added   []int64
	removed []int64
	cleared int
}

func (f *fakeCart) Add(_ context.Context, _, productID int64) (domain.CartItem, error) {
	if f.addErr != nil {
		return domain.CartItem{}, f.addErr
	}
	f.added = append(f.added, productID)
	f.count++
	return domain.CartItem{ProductID: productID, Quantity: 1}, nil
}

func (f *fakeCart) Remove(_ context.Context, _, productID int64) error {
	f.removed = append(f.removed, productID)
	f.count = 0
	return nil
}

func (f *fakeCart) Clear(context.Context, int64) error {
	f.cleared++
	f.count = 0
	return nil
}

func (f *fakeCart) Count(context.Context, int64) (int64, error) { return f.count, nil }

func (f *fakeCart) View(context.Context, int64) (cart.View, error) {
	return f.view, f.viewErr
}

type fakeCheckout struct {
	receipt  *checkout.Receipt
	err      error
	customer checkout.Customer
}

func (f *fakeCheckout) PlaceOrder(_ context.Context, c checkout.Customer) (*checkout.Receipt, error) {
	f.customer = c
	return f.receipt, f.err
}

type fakeRecs struct {
	open     []domain.ReconciliationRecord
	resolved []string
}

func (f *fakeRecs) ListOpen(context.Context, int) ([]domain.ReconciliationRecord, error) {
	return f.open, nil
}

func (f *fakeRecs) Resolve(_ context.Context, id string, _ time.Time) error {
	for i, r := range f.open {
		if r.ID == id {
			f.open = append(f.open[:i], f.open[i+1:]...)
			f.resolved = append(f.resolved, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeAPI struct {
	sent    []any
	edited  []any
	media   []tele.Inputtable
	editErr error
}

func (a *fakeAPI) Send(_ tele.Recipient, what any, _ ...any) (*tele.Message, error) {
	a.sent = append(a.sent, what)
	return &tele.Message{ID: 55}, nil
}

func (a *fakeAPI) Edit(_ tele.Editable, what any, _ ...any) (*tele.Message, error) {
	a.edited = append(a.edited, what)
	return &tele.Message{ID: 55}, a.editErr
}

func (a *fakeAPI) EditMedia(_ tele.Editable, media tele.Inputtable, _ ...any) (*tele.Message, error) {
	a.media = append(a.media, media)
	return &tele.Message{ID: 55}, a.editErr
}
