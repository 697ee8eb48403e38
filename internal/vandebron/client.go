package vandebron

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/jgoulah/vandebron/pkg/models"
)

const redirectURI = "https://mijn.vandebron.nl/"

// Endpoints holds the portal URLs the client talks to. Overridable so tests
// can point the client at a fake portal.
type Endpoints struct {
	Auth            string
	Token           string
	UserInfo        string
	EnergyConsumers string // + /{orgID}
	Usage           string // + /{userID}/connections/{connID}/usage
}

// DefaultEndpoints returns the production Vandebron portal endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Auth:            "https://vandebron.nl/auth/realms/vandebron/protocol/openid-connect/auth",
		Token:           "https://vandebron.nl/auth/realms/vandebron/protocol/openid-connect/token",
		UserInfo:        "https://mijn.vandebron.nl/api/authentication/userinfo",
		EnergyConsumers: "https://mijn.vandebron.nl/api/v1/energyConsumers",
		Usage:           "https://mijn.vandebron.nl/api/consumers",
	}
}

// Client drives the Vandebron portal: it replays the browser's OpenID
// Connect login to obtain a bearer token, then fetches connections and
// usage data with it. All calls share one cookie-persisting session; the
// login steps depend on cookies set by earlier steps.
type Client struct {
	client     *http.Client
	noRedirect *http.Client
	endpoints  Endpoints
	username   string
	password   string
	token      string
	user       models.UserIdentity
}

// NewClient creates a client for the production portal.
func NewClient(username, password string) (*Client, error) {
	return NewClientWithEndpoints(username, password, DefaultEndpoints())
}

// NewClientWithEndpoints creates a client against custom portal endpoints.
func NewClientWithEndpoints(username, password string, endpoints Endpoints) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	// The credential POST must not follow the redirect: the Location header
	// carries the authorization code in its URL fragment, which the client
	// would drop if it chased the redirect. Both clients share the jar so
	// cookies set during the login page fetch reach the form submission.
	client := &http.Client{Jar: jar, Timeout: 30 * time.Second}
	noRedirect := &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Client{
		client:     client,
		noRedirect: noRedirect,
		endpoints:  endpoints,
		username:   username,
		password:   password,
	}, nil
}

// Token returns the bearer token obtained by Login, or "" before login.
func (c *Client) Token() string {
	return c.token
}

// User returns the identity obtained by Login.
func (c *Client) User() models.UserIdentity {
	return c.user
}

// Login runs the full authorization-code dance: fetch the login page,
// submit credentials, exchange the resulting code for a token, and fetch
// the user's identity. Any failure aborts; there is no retry.
func (c *Client) Login(ctx context.Context) error {
	code, err := c.getAuthCode(ctx)
	if err != nil {
		return err
	}

	token, err := c.exchangeCode(ctx, code)
	if err != nil {
		return err
	}
	c.token = token

	user, err := c.fetchIdentity(ctx)
	if err != nil {
		return err
	}
	c.user = user

	return nil
}

// getLoginURL fetches the identity provider's login page and extracts the
// form submission URL from the first form's action attribute.
func (c *Client) getLoginURL(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("client_id", "website")
	params.Set("redirect_uri", redirectURI)
	params.Set("state", uuid.NewString())
	params.Set("response_mode", "fragment")
	params.Set("response_type", "code")
	params.Set("scope", "openid")
	params.Set("nonce", uuid.NewString())

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoints.Auth+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating auth request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching login page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{StatusCode: resp.StatusCode, URL: c.endpoints.Auth}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing login page: %w", err)
	}

	action, ok := doc.Find("form").First().Attr("action")
	if !ok {
		return "", &ParseError{What: "no login form found on the authorization page"}
	}

	return action, nil
}

// getAuthCode submits the credentials to the login form and extracts the
// authorization code from the fragment of the redirect's Location header.
func (c *Client) getAuthCode(ctx context.Context) (string, error) {
	loginURL, err := c.getLoginURL(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("login", "Log in")

	req, err := http.NewRequestWithContext(ctx, "POST", loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting credentials: %w", err)
	}
	defer resp.Body.Close()

	// A successful login answers with a redirect whose Location carries the
	// code. Anything else means the credentials were rejected.
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", &AuthError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("login rejected (status %d): check username/password", resp.StatusCode),
		}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: "login response missing Location header"}
	}

	locURL, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing redirect location: %w", err)
	}

	fragment, err := url.ParseQuery(locURL.Fragment)
	if err != nil {
		return "", fmt.Errorf("parsing redirect fragment: %w", err)
	}

	code := fragment.Get("code")
	if code == "" {
		return "", &ParseError{What: "no authorization code in redirect fragment"}
	}

	return code, nil
}

// exchangeCode trades the authorization code for an access token.
func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", "website")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging code for token: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	if result.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: "token response missing access_token"}
	}

	return result.AccessToken, nil
}

// fetchIdentity resolves the authenticated user's id and organization.
func (c *Client) fetchIdentity(ctx context.Context) (models.UserIdentity, error) {
	var user models.UserIdentity
	if err := c.getJSON(ctx, c.endpoints.UserInfo, &user); err != nil {
		return models.UserIdentity{}, err
	}
	return user, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into dest.
func (c *Client) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// get performs an authenticated GET and returns the body on 2xx.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &TransportError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	return body, nil
}
