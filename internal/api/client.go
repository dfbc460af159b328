package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const maxErrorBody = 64 << 10

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	CSRFHeader string
	UserAgent  string
	Lang       string
	// Transport overrides the default transport, mostly for tests.
	Transport http.RoundTripper
}

// Client is the shared request object every service module goes through.
// It forwards cookies on every call and reports 401 responses to the
// registered hook.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	jar        http.CookieJar
	csrfHeader string
	userAgent  string

	mu             sync.RWMutex
	lang           string
	onUnauthorized UnauthorizedHandler
}

// UnauthorizedHandler is told about 401 responses. Epoch is read when a
// request is sent and handed back with the 401, so a handler can ignore
// answers that predate its latest session change.
type UnauthorizedHandler interface {
	Epoch() uint64
	Expire(sentAt uint64)
}

type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	CSRFToken string
	// SkipUnauthorizedHook keeps session calls (me, login, logout) from
	// re-entering the session store through the 401 hook.
	SkipUnauthorizedHook bool
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: missing base url")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported base url scheme %q", base.Scheme)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("api: cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	csrfHeader := opts.CSRFHeader
	if csrfHeader == "" {
		csrfHeader = "X-CSRF-Token"
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		jar:        jar,
		csrfHeader: csrfHeader,
		userAgent:  opts.UserAgent,
		lang:       lang,
	}, nil
}

// OnUnauthorized registers the handler fired for 401 responses.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) {
	c.mu.Lock()
	c.onUnauthorized = h
	c.mu.Unlock()
}

func (c *Client) SetLang(lang string) {
	if lang == "" {
		return
	}
	c.mu.Lock()
	c.lang = lang
	c.mu.Unlock()
}

func (c *Client) Lang() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lang
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Cookies returns the credentials the jar would send to the API.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.jar.SetCookies(c.baseURL, cookies)
}

// CookieHeader renders the jar contents as a Cookie header, for transports
// that do not use the http.Client (the presence websocket).
func (c *Client) CookieHeader() http.Header {
	header := http.Header{}
	cookies := c.Cookies()
	if len(cookies) == 0 {
		return header
	}
	parts := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}
	header.Set("Cookie", strings.Join(parts, "; "))
	if c.userAgent != "" {
		header.Set("User-Agent", c.userAgent)
	}
	return header
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Do(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("api: encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.CSRFToken != "" {
		httpReq.Header.Set(c.csrfHeader, req.CSRFToken)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if lang := c.Lang(); lang != "" {
		httpReq.Header.Set("Accept-Language", lang)
	}

	var hook UnauthorizedHandler
	var sentAt uint64
	if !req.SkipUnauthorizedHook {
		c.mu.RLock()
		hook = c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			sentAt = hook.Epoch()
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &Error{
			Kind:    KindNetwork,
			Message: Localize(KindNetwork, c.Lang()),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := c.errorFromResponse(resp)
		if apiErr.Kind == KindUnauthorized && hook != nil {
			hook.Expire(sentAt)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &Error{
			Kind:    KindServer,
			Status:  resp.StatusCode,
			Code:    "invalid_response",
			Message: Localize(KindServer, c.Lang()),
			Err:     err,
		}
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (c *Client) errorFromResponse(resp *http.Response) *Error {
	kind := kindForStatus(resp.StatusCode)
	apiErr := &Error{
		Kind:    kind,
		Status:  resp.StatusCode,
		Message: Localize(kind, c.Lang()),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed errorBody
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil {
		apiErr.Code = parsed.Code
		if apiErr.Code == "" {
			apiErr.Code = parsed.Error
		}
		// Server text is only shown for validation failures; the others keep
		// the generic localized message.
		if kind == KindValidation && parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
	}
	return apiErr
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
