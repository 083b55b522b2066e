// Package cmsapi is the client for the upstream content API: login, content
// fetch and save, and image upload. Authentication rides on cookies, so every
// operator session gets its own Client with its own cookie jar.
package cmsapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	j "github.com/goccy/go-json"
	"golang.org/x/net/publicsuffix"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
)

// LoginSuccessMessage is the message the upstream sends for a good login.
const LoginSuccessMessage = "Login successful"

// maxResponseBytes bounds every body read from the upstream.
const maxResponseBytes = 32 << 20

// LoginResult is what a successful login yields.
type LoginResult struct {
	Website j.RawMessage
	Cookies []*http.Cookie
}

// Client talks to one upstream on behalf of one operator.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for baseURL with a fresh cookie jar pre-seeded with
// cookies.
func New(baseURL string, timeout time.Duration, cookies []*http.Cookie) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("cmsapi: base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("cmsapi: base url %q is not absolute", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cmsapi: cookie jar: %w", err)
	}
	if len(cookies) > 0 {
		jar.SetCookies(base, cookies)
	}
	return &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// Cookies returns the jar's current cookies for the upstream.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnreachable, err)
	}
	return resp, nil
}

// Login posts credentials to /login.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body, err := j.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("cmsapi: encode login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cmsapi: login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperr.ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &apperr.AuthError{Status: resp.StatusCode}
	}

	var out struct {
		Message string       `json:"message"`
		Website j.RawMessage `json:"website"`
	}
	if err := j.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("cmsapi: decode login: %w", err)
	}
	if out.Message != LoginSuccessMessage {
		return nil, fmt.Errorf("%w: %q", apperr.ErrLoginRejected, out.Message)
	}
	return &LoginResult{Website: out.Website, Cookies: c.Cookies()}, nil
}

// FetchContent loads the operator's document from /my-content.
func (c *Client) FetchContent(ctx context.Context) (*content.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/my-content"), nil)
	if err != nil {
		return nil, fmt.Errorf("cmsapi: content request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expectOK(resp); err != nil {
		return nil, err
	}

	doc, err := content.ParseDocument(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("cmsapi: decode content: %w", err)
	}
	return doc, nil
}

// SaveContent submits doc to /content as {"content": doc}.
func (c *Client) SaveContent(ctx context.Context, doc *content.Document) error {
	raw, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("cmsapi: encode content: %w", err)
	}
	var body bytes.Buffer
	body.Grow(len(raw) + 12)
	body.WriteString(`{"content":`)
	body.Write(raw)
	body.WriteByte('}')

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint("/content"), &body)
	if err != nil {
		return fmt.Errorf("cmsapi: save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return expectOK(resp)
}

// Upload sends an image as multipart field "image" to /upload and returns the
// hosted URL.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("image", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload"), pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("cmsapi: upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	defer resp.Body.Close()
	if err := expectOK(resp); err != nil {
		return "", err
	}

	var out struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	if err := j.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("cmsapi: decode upload: %w", err)
	}
	if !out.Success || out.URL == "" {
		return "", errors.New("cmsapi: upload not accepted")
	}
	return out.URL, nil
}

// StatusError is a non-2xx answer from a content endpoint.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cmsapi: upstream status %d", e.Status)
}

func expectOK(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: upstream status 401", apperr.ErrUnauthorized)
	}
	return &StatusError{Status: resp.StatusCode}
}
