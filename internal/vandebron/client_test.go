package vandebron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/vandebron/pkg/models"
)

// fakePortal simulates the portal's identity provider and API: a login
// page whose form posts back to the portal, a redirect carrying the
// authorization code in its fragment, a token endpoint, and the
// authenticated API endpoints.
type fakePortal struct {
	server *httptest.Server

	mu         sync.Mutex
	authQuery  url.Values
	usageQuery url.Values
	hits       map[string]int

	// knobs for failure scenarios
	authStatus     int
	loginPageBody  string
	missingCode    bool
	tokenBody      string
	userInfoStatus int
	consumersBody  string
	usageStatus    int
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		authStatus:     http.StatusOK,
		userInfoStatus: http.StatusOK,
		usageStatus:    http.StatusOK,
		hits:           map[string]int{},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		p.record("/auth")
		p.mu.Lock()
		p.authQuery = r.URL.Query()
		p.mu.Unlock()

		if p.authStatus != http.StatusOK {
			w.WriteHeader(p.authStatus)
			return
		}

		// The login form depends on this cookie being echoed back.
		http.SetCookie(w, &http.Cookie{Name: "AUTH_SESSION_ID", Value: "fake-session"})

		body := p.loginPageBody
		if body == "" {
			body = fmt.Sprintf(`<html><body><form id="kc-form-login" action="%s/login" method="post"></form></body></html>`, p.server.URL)
		}
		fmt.Fprint(w, body)
	})

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		p.record("/login")

		if c, err := r.Cookie("AUTH_SESSION_ID"); err != nil || c.Value != "fake-session" {
			http.Error(w, "missing session cookie", http.StatusBadRequest)
			return
		}

		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "hunter2" {
			// Keycloak re-renders the login page on bad credentials.
			fmt.Fprint(w, `<html><body><form action="/login">Invalid credentials</form></body></html>`)
			return
		}
		require.Equal(t, "Log in", r.PostForm.Get("login"))

		location := "https://mijn.vandebron.nl/#state=xyz&code=fake-code"
		if p.missingCode {
			location = "https://mijn.vandebron.nl/#state=xyz"
		}
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.record("/token")
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "website", r.PostForm.Get("client_id"))
		require.Equal(t, "fake-code", r.PostForm.Get("code"))

		body := p.tokenBody
		if body == "" {
			body = `{"access_token":"fake-token","token_type":"Bearer"}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})

	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.record("/userinfo")
		require.Equal(t, "Bearer fake-token", r.Header.Get("Authorization"))

		if p.userInfoStatus != http.StatusOK {
			w.WriteHeader(p.userInfoStatus)
			return
		}
		fmt.Fprint(w, `{"id":"user-1","organizationId":"org-1"}`)
	})

	mux.HandleFunc("/energyConsumers/org-1", func(w http.ResponseWriter, r *http.Request) {
		p.record("/energyConsumers")
		require.Equal(t, "Bearer fake-token", r.Header.Get("Authorization"))

		body := p.consumersBody
		if body == "" {
			body = `{"shippingAddresses":[{"connections":[
				{"marketSegment":"Electricity","connectionId":"conn-1"},
				{"marketSegment":"Gas","connectionId":"conn-2"}
			]}]}`
		}
		fmt.Fprint(w, body)
	})

	mux.HandleFunc("/consumers/user-1/connections/", func(w http.ResponseWriter, r *http.Request) {
		p.record("/usage")
		require.Equal(t, "Bearer fake-token", r.Header.Get("Authorization"))
		p.mu.Lock()
		p.usageQuery = r.URL.Query()
		p.mu.Unlock()

		if p.usageStatus != http.StatusOK {
			w.WriteHeader(p.usageStatus)
			fmt.Fprint(w, `{"error":"invalid resolution parameter"}`)
			return
		}
		fmt.Fprint(w, `{"unit":"kWh","values":[
			{"time":"2024-03-10T10:00:00Z","consumptionPeak":1.5,"consumptionOffPeak":0.2,"productionPeak":0.9},
			{"time":"2024-03-10T11:00:00Z","consumptionPeak":0.7,"consumptionOffPeak":0.1,"productionPeak":0.4}
		]}`)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) record(path string) {
	p.mu.Lock()
	p.hits[path]++
	p.mu.Unlock()
}

func (p *fakePortal) endpoints() Endpoints {
	return Endpoints{
		Auth:            p.server.URL + "/auth",
		Token:           p.server.URL + "/token",
		UserInfo:        p.server.URL + "/userinfo",
		EnergyConsumers: p.server.URL + "/energyConsumers",
		Usage:           p.server.URL + "/consumers",
	}
}

func (p *fakePortal) client(t *testing.T, username, password string) *Client {
	c, err := NewClientWithEndpoints(username, password, p.endpoints())
	require.NoError(t, err)
	return c
}

func loggedInClient(t *testing.T, p *fakePortal) *Client {
	c := p.client(t, "alice", "hunter2")
	require.NoError(t, c.Login(context.Background()))
	return c
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := newFakePortal(t)
		c := p.client(t, "alice", "hunter2")

		require.NoError(t, c.Login(context.Background()))

		assert.Equal(t, "fake-token", c.Token())
		assert.Equal(t, models.UserIdentity{UserID: "user-1", OrgID: "org-1"}, c.User())
	})

	t.Run("authorization request parameters", func(t *testing.T) {
		p := newFakePortal(t)
		c := p.client(t, "alice", "hunter2")

		require.NoError(t, c.Login(context.Background()))

		q := p.authQuery
		assert.Equal(t, "website", q.Get("client_id"))
		assert.Equal(t, "https://mijn.vandebron.nl/", q.Get("redirect_uri"))
		assert.Equal(t, "fragment", q.Get("response_mode"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "openid", q.Get("scope"))
		// state and nonce are fresh random identifiers, not shared
		assert.NotEmpty(t, q.Get("state"))
		assert.NotEmpty(t, q.Get("nonce"))
		assert.NotEqual(t, q.Get("state"), q.Get("nonce"))
	})

	t.Run("wrong credentials", func(t *testing.T) {
		p := newFakePortal(t)
		c := p.client(t, "alice", "wrong")

		err := c.Login(context.Background())
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Empty(t, c.Token())
	})

	t.Run("no form on login page", func(t *testing.T) {
		p := newFakePortal(t)
		p.loginPageBody = `<html><body>Maintenance</body></html>`
		c := p.client(t, "alice", "hunter2")

		err := c.Login(context.Background())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("missing code in redirect fragment", func(t *testing.T) {
		p := newFakePortal(t)
		p.missingCode = true
		c := p.client(t, "alice", "hunter2")

		err := c.Login(context.Background())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("missing access_token", func(t *testing.T) {
		p := newFakePortal(t)
		p.tokenBody = `{"token_type":"Bearer"}`
		c := p.client(t, "alice", "hunter2")

		err := c.Login(context.Background())
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("authorization endpoint failure", func(t *testing.T) {
		p := newFakePortal(t)
		p.authStatus = http.StatusServiceUnavailable
		c := p.client(t, "alice", "hunter2")

		err := c.Login(context.Background())
		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
		// the pipeline aborts before submitting credentials
		assert.Zero(t, p.hits["/login"])
		assert.Zero(t, p.hits["/token"])
	})

	t.Run("userinfo failure", func(t *testing.T) {
		p := newFakePortal(t)
		p.userInfoStatus = http.StatusInternalServerError
		c := p.client(t, "alice", "hunter2")

		err := c.Login(context.Background())
		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, models.UserIdentity{}, c.User())
	})
}

func TestConnections(t *testing.T) {
	t.Run("maps connections", func(t *testing.T) {
		p := newFakePortal(t)
		c := loggedInClient(t, p)

		conns, err := c.Connections(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []models.Connection{
			{MarketSegment: "Electricity", ConnectionID: "conn-1"},
			{MarketSegment: "Gas", ConnectionID: "conn-2"},
		}, conns)
	})

	t.Run("zero shipping addresses", func(t *testing.T) {
		p := newFakePortal(t)
		p.consumersBody = `{"shippingAddresses":[]}`
		c := loggedInClient(t, p)

		_, err := c.Connections(context.Background())
		var perr *PreconditionError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("multiple shipping addresses", func(t *testing.T) {
		p := newFakePortal(t)
		p.consumersBody = `{"shippingAddresses":[{"connections":[]},{"connections":[]}]}`
		c := loggedInClient(t, p)

		_, err := c.Connections(context.Background())
		var perr *PreconditionError
		require.ErrorAs(t, err, &perr)
	})
}

func TestUsageRange(t *testing.T) {
	p := newFakePortal(t)
	c := loggedInClient(t, p)
	conn := models.Connection{MarketSegment: "Electricity", ConnectionID: "conn-1"}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	rec, err := c.UsageRange(context.Background(), conn, start, end)
	require.NoError(t, err)

	assert.Equal(t, "Days", p.usageQuery.Get("resolution"))
	assert.Equal(t, "2024-03-01", p.usageQuery.Get("startDate"))
	assert.Equal(t, "2024-03-31", p.usageQuery.Get("endDate"))

	assert.Equal(t, "Electricity", rec.Market)
	require.Len(t, rec.Values, 2)
	assert.Equal(t, 1.5, rec.Values[0].ConsumptionPeak)
	assert.Equal(t, 0.2, rec.Values[0].ConsumptionOffPeak)

	// re-serializing keeps every server field alongside the market tag
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"market":"Electricity","unit":"kWh","values":[
		{"time":"2024-03-10T10:00:00Z","consumptionPeak":1.5,"consumptionOffPeak":0.2,"productionPeak":0.9},
		{"time":"2024-03-10T11:00:00Z","consumptionPeak":0.7,"consumptionOffPeak":0.1,"productionPeak":0.4}
	]}`, string(out))
}

func TestUsageDay(t *testing.T) {
	p := newFakePortal(t)
	c := loggedInClient(t, p)
	conn := models.Connection{MarketSegment: "Electricity", ConnectionID: "conn-1"}

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	rec, err := c.UsageDay(context.Background(), conn, day)
	require.NoError(t, err)

	assert.Equal(t, "Hours", p.usageQuery.Get("resolution"))
	assert.Equal(t, "2024-03-10T00:15:00.000", p.usageQuery.Get("startDateTime"))
	assert.Equal(t, "2024-03-11T00:00:00.000", p.usageQuery.Get("endDateTime"))
	assert.Equal(t, "Electricity", rec.Market)
}

func TestUsageTransportError(t *testing.T) {
	p := newFakePortal(t)
	c := loggedInClient(t, p)
	p.usageStatus = http.StatusBadRequest
	conn := models.Connection{MarketSegment: "Electricity", ConnectionID: "conn-1"}

	_, err := c.UsageDay(context.Background(), conn, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
}

func TestParseBucketTime(t *testing.T) {
	t.Run("utc marker stripped", func(t *testing.T) {
		got, err := ParseBucketTime("2024-03-10T10:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("fractional seconds", func(t *testing.T) {
		got, err := ParseBucketTime("2024-03-10T10:00:00.000Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("arbitrary fraction width", func(t *testing.T) {
		got, err := ParseBucketTime("2024-03-10T10:00:00.5Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 10, 10, 0, 0, 500000000, time.UTC), got)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseBucketTime("not-a-time")
		require.Error(t, err)
	})
}

func TestHourlyWindowAroundDSTChange(t *testing.T) {
	// 2024-03-10 in a zone-less request stays a plain calendar window; the
	// server owns the zone interpretation.
	start, end := hourlyWindow(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-03-10T00:15:00.000", start)
	assert.Equal(t, "2024-03-11T00:00:00.000", end)

	// month boundary
	start, end = hourlyWindow(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-29T00:15:00.000", start)
	assert.Equal(t, "2024-03-01T00:00:00.000", end)
}
