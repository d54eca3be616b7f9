package points

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersXML = `<response>
  <userProfile>
    <userId>u-1</userId>
    <fields>
      <field><name>EMAIL</name><value>Ann@Example.com</value></field>
      <field><name>FIRST_NAME</name><value>Ann</value></field>
      <field><name>LAST_NAME</name><value>Lee</value></field>
    </fields>
  </userProfile>
  <userProfile>
    <userId>u-2</userId>
    <fields><field><name>FIRST_NAME</name><value>NoMail</value></field></fields>
  </userProfile>
</response>`

type fakeProvider struct {
	mu            sync.Mutex
	expiresIn     int
	tokenDelay    time.Duration
	usersBody     string
	usersStatus   int
	pointsBody    string
	pointsDelays  []time.Duration
	withdrawDelay time.Duration
	withdrawCode  int
	withdrawals   []withdrawRequest

	tokenCalls  atomic.Int32
	usersCalls  atomic.Int32
	pointsCalls atomic.Int32
}

func (f *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		if r.Form.Get("client_id") != "id" || r.Form.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.tokenDelay > 0 {
			time.Sleep(f.tokenDelay)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", f.tokenCalls.Load()),
			"token_type":   "bearer",
			"expires_in":   f.expiresIn,
		})
	})
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		f.usersCalls.Add(1)
		f.mu.Lock()
		status, body := f.usersStatus, f.usersBody
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/api/v3/gamification/points", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.pointsCalls.Add(1))
		if n <= len(f.pointsDelays) {
			select {
			case <-time.After(f.pointsDelays[n-1]):
			case <-r.Context().Done():
				return
			}
		}
		assert.Equal(t, "u-1", r.URL.Query().Get("userIds"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(f.pointsBody))
	})
	mux.HandleFunc("/api/v3/gamification/points/withdraw", func(w http.ResponseWriter, r *http.Request) {
		var req withdrawRequest
		require.NoError(t, xml.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.withdrawals = append(f.withdrawals, req)
		f.mu.Unlock()
		if f.withdrawDelay > 0 {
			select {
			case <-time.After(f.withdrawDelay):
			case <-r.Context().Done():
				return
			}
		}
		if f.withdrawCode != 0 {
			w.WriteHeader(f.withdrawCode)
			return
		}
		_, _ = w.Write([]byte(`<response><success>true</success></response>`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeProvider, mutate func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	opts := Options{BaseURL: srv.URL + "/", ClientID: "id", ClientSecret: "secret", Timeout: time.Second}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestAccessTokenCachedOutsideMargin(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600}
	c := newTestClient(t, f, nil)

	tok1, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	tok2, err := c.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestAccessTokenRefreshedInsideMargin(t *testing.T) {
	f := &fakeProvider{expiresIn: 30}
	c := newTestClient(t, f, nil)

	_, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.tokenCalls.Load())
}

func TestAccessTokenConcurrentCallersShareExchange(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, tokenDelay: 50 * time.Millisecond}
	c := newTestClient(t, f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AccessToken(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestAccessTokenSharedExchangeOutlivesFirstCaller(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, tokenDelay: 150 * time.Millisecond}
	c := newTestClient(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.AccessToken(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return f.tokenCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := c.AccessToken(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.NoError(t, <-second)
	assert.NoError(t, <-first)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestAccessTokenBadCredentials(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600}
	c := newTestClient(t, f, func(o *Options) { o.ClientSecret = "wrong" })

	_, err := c.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrTokenUnavailable)
}

func TestLookupEmailCaseInsensitive(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, usersBody: usersXML}
	c := newTestClient(t, f, nil)

	id, ok, err := c.LookupEmail(context.Background(), "  ANN@example.COM ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, "ann@example.com", id.Email)
	assert.Equal(t, "Ann", id.FirstName)
	assert.Equal(t, "Lee", id.LastName)

	_, ok, err = c.LookupEmail(context.Background(), "ann@example.org")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), f.usersCalls.Load(), "fresh cache is reused")
}

func TestDirectoryKeepsPreviousCacheOnFailure(t *testing.T) {
	now := time.Now()
	f := &fakeProvider{expiresIn: 3600, usersBody: usersXML}
	c := newTestClient(t, f, func(o *Options) {
		o.DirectoryTTL = time.Minute
		o.Now = func() time.Time { return now }
	})

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)

	f.mu.Lock()
	f.usersStatus = http.StatusBadGateway
	f.mu.Unlock()
	now = now.Add(2 * time.Minute)

	_, err = c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.True(t, c.Ready())

	id, ok, err := c.LookupEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
}

func TestListUsersIgnoresCallerCancellation(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, usersBody: usersXML}
	c := newTestClient(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.True(t, c.Ready())
}

func TestEmptyDirectoryIsUnavailable(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, usersBody: `<response></response>`}
	c := newTestClient(t, f, nil)

	_, err := c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.False(t, c.Ready())

	_, ok, err := c.LookupEmail(context.Background(), "ann@example.com")
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.False(t, ok)
}

func TestPointsBalance(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Balance
	}{
		{"known", `<response><userPointsInfo><userId>u-1</userId><points>120</points></userPointsInfo></response>`, Balance{Points: 120, Known: true}},
		{"zero is known", `<response><userPointsInfo><userId>u-1</userId><points>0</points></userPointsInfo></response>`, Balance{Points: 0, Known: true}},
		{"missing field", `<response><userPointsInfo><userId>u-1</userId></userPointsInfo></response>`, Balance{}},
		{"garbage", `<response><userPointsInfo><userId>u-1</userId><points>lots</points></userPointsInfo></response>`, Balance{}},
		{"other user", `<response><userPointsInfo><userId>u-9</userId><points>5</points></userPointsInfo></response>`, Balance{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeProvider{expiresIn: 3600, pointsBody: tc.body}
			c := newTestClient(t, f, nil)
			got, err := c.Points(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPointsRetriesOnceOnTimeout(t *testing.T) {
	f := &fakeProvider{
		expiresIn:    3600,
		pointsBody:   `<response><userPointsInfo><userId>u-1</userId><points>7</points></userPointsInfo></response>`,
		pointsDelays: []time.Duration{time.Second},
	}
	c := newTestClient(t, f, func(o *Options) { o.Timeout = 100 * time.Millisecond })

	got, err := c.Points(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, Balance{Points: 7, Known: true}, got)
	assert.Equal(t, int32(2), f.pointsCalls.Load())
}

func TestWithdrawSendsRequest(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600}
	c := newTestClient(t, f, nil)

	require.NoError(t, c.Withdraw(context.Background(), "u-1", 80, "Telegram shop order"))
	require.Len(t, f.withdrawals, 1)
	assert.Equal(t, withdrawRequest{
		XMLName: xml.Name{Local: "withdrawGamificationPoints"},
		UserID:  "u-1",
		Amount:  80,
		Reason:  "Telegram shop order",
	}, f.withdrawals[0])
}

func TestWithdrawRejectedIsDefinite(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, withdrawCode: http.StatusUnprocessableEntity}
	c := newTestClient(t, f, nil)

	err := c.Withdraw(context.Background(), "u-1", 80, "r")
	require.Error(t, err)
	assert.False(t, IsUncertain(err))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
}

func TestWithdrawServerErrorIsUncertain(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, withdrawCode: http.StatusInternalServerError}
	c := newTestClient(t, f, nil)

	err := c.Withdraw(context.Background(), "u-1", 80, "r")
	assert.True(t, IsUncertain(err))
}

func TestWithdrawTimeoutIsUncertainAndNotRetried(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600, withdrawDelay: time.Second}
	c := newTestClient(t, f, func(o *Options) { o.Timeout = 100 * time.Millisecond })

	err := c.Withdraw(context.Background(), "u-1", 80, "r")
	assert.True(t, IsUncertain(err))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.withdrawals, 1)
}

func TestWithdrawTokenFailureIsDefinite(t *testing.T) {
	f := &fakeProvider{expiresIn: 3600}
	c := newTestClient(t, f, func(o *Options) { o.ClientSecret = "wrong" })

	err := c.Withdraw(context.Background(), "u-1", 80, "r")
	assert.ErrorIs(t, err, ErrTokenUnavailable)
	assert.False(t, IsUncertain(err))
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{ClientID: "a", ClientSecret: "b"})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "https://lms"})
	assert.Error(t, err)
}
