package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/bnema/truck-load-watch/internal/domain"
)

const (
	LoginPath  = "/core/jsp/CPLogin.jsp"
	OffersPath = "/market/jsp/CPRespondToOffers.jsp"

	maxListingBytes = 8 << 20
	maxLoginBytes   = 1 << 20
)

type Credentials struct {
	Username string
	Password string
}

// Client talks to the market over plain form posts. Session cookies are
// never kept on the client; every call takes the token explicitly.
type Client struct {
	BaseURL        string
	Credentials    Credentials
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Limiter        *rate.Limiter
}

// NewLimiter returns a token bucket of rps requests per second with a
// burst of one. A non-positive rps disables limiting.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (c *Client) Login(ctx context.Context) (domain.SessionToken, error) {
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return domain.SessionToken{}, fmt.Errorf("%w: username and password are required", domain.ErrAuth)
	}

	endpoint, err := buildMarketURL(c.BaseURL, LoginPath)
	if err != nil {
		return domain.SessionToken{}, err
	}

	values := url.Values{}
	values.Set("loginId", c.Credentials.Username)
	values.Set("password", c.Credentials.Password)
	values.Set("mobile", "true")
	values.Set("submit.x", "36")
	values.Set("submit.y", "13")
	values.Set("locale", "lo_DF")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("create cookie jar: %w", err)
	}
	base := c.httpClient()
	client := &http.Client{Transport: base.Transport, Timeout: base.Timeout, Jar: jar}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	if err := c.wait(requestCtx); err != nil {
		return domain.SessionToken{}, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("%w: request login: %w", domain.ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.SessionToken{}, fmt.Errorf("%w: login returned status %d", domain.ErrAuth, resp.StatusCode)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return domain.SessionToken{}, fmt.Errorf("%w: login returned status %d", domain.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBytes))
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("%w: read login response: %w", domain.ErrFetch, err)
	}
	if showsLoginForm(body) {
		return domain.SessionToken{}, fmt.Errorf("%w: credentials rejected", domain.ErrAuth)
	}

	cookies := jar.Cookies(endpoint)
	if len(cookies) == 0 {
		return domain.SessionToken{}, fmt.Errorf("%w: login set no session cookie", domain.ErrAuth)
	}

	token := domain.SessionToken{Cookies: make(map[string]string, len(cookies))}
	for _, cookie := range cookies {
		token.Cookies[cookie.Name] = cookie.Value
	}
	return token, nil
}

func (c *Client) FetchListing(ctx context.Context, session domain.SessionToken) ([]byte, error) {
	endpoint, err := buildMarketURL(c.BaseURL, OffersPath)
	if err != nil {
		return nil, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	if err := c.wait(requestCtx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create listing request: %w", err)
	}
	attachSession(req, session)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: listing returned status %d", domain.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read listing: %w", domain.ErrFetch, err)
	}
	if len(body) > maxListingBytes {
		return nil, fmt.Errorf("%w: listing exceeds %d bytes", domain.ErrFetch, maxListingBytes)
	}
	if showsLoginForm(body) {
		return nil, fmt.Errorf("%w: session expired, listing returned the login form", domain.ErrAuth)
	}

	return body, nil
}

func (c *Client) SubmitAcceptance(ctx context.Context, session domain.SessionToken, fields domain.HiddenFields) error {
	endpoint, err := buildMarketURL(c.BaseURL, OffersPath)
	if err != nil {
		return err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	if err := c.wait(requestCtx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint.String(), strings.NewReader(encodeOrdered(fields)))
	if err != nil {
		return fmt.Errorf("create acceptance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	attachSession(req, session)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxLoginBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: acceptance returned status %d", domain.ErrSubmission, resp.StatusCode)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func (c *Client) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func attachSession(req *http.Request, session domain.SessionToken) {
	names := make([]string, 0, len(session.Cookies))
	for name := range session.Cookies {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		req.AddCookie(&http.Cookie{Name: name, Value: session.Cookies[name]})
	}
}

// encodeOrdered keeps the page's field order, which url.Values.Encode
// would sort away.
func encodeOrdered(fields domain.HiddenFields) string {
	var b strings.Builder
	for i, name := range fields.Names() {
		value, _ := fields.Get(name)
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value.String()))
	}
	return b.String()
}

func showsLoginForm(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(`input[name="loginId"]`).Length() > 0
}

func buildMarketURL(baseURL string, path string) (*url.URL, error) {
	if baseURL == "" {
		return nil, errors.New("market base url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse market base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("market base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("market base url host is required")
	}
	// A host-only base joins to a relative path, which the cookie jar
	// matches against nothing.
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.JoinPath(path), nil
}
