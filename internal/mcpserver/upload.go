package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/sitepanel/internal/content"
)

const maxImageSize = 10 << 20 // 10 MB

var (
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true,
	}

	imageMIMEs = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type uploadResult struct {
	Path content.Path `json:"path"`
	URL  string       `json:"url"`
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := pathArg(req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := req.GetString("filename", "")

	var (
		data []byte
		ext  string
	)
	if strings.HasPrefix(source, "data:") {
		data, ext, err = decodeDataURI(source)
	} else {
		data, ext, err = s.fetch(ctx, source)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxImageSize {
		return mcp.NewToolResultError(fmt.Sprintf("image too large: %d bytes (max %d)", len(data), maxImageSize)), nil
	}

	if filename == "" {
		filename = filenameFromURL(source, ext)
	}
	filename = sanitizeFilename(filename)
	if filepath.Ext(filename) == "" && ext != "" {
		filename += ext
	}
	fext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[fext] {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported image extension: %q (allowed: png, jpg, jpeg, gif, webp, svg)", fext)), nil
	}
	if err := validateMagicBytes(data, fext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	field := fieldPath(p)
	hosted, err := s.ed.Upload(ctx, field, filename, bytes.NewReader(data))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(uploadResult{Path: field.Key(content.KeyValue), URL: hosted}), nil
}

// fieldPath accepts either an image field path or its value path.
func fieldPath(p content.Path) content.Path {
	if last, ok := p.Last(); ok && !last.IsIndex() && last.Key() == content.KeyValue {
		return p.Parent()
	}
	return p
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime, _, _ := strings.Cut(meta, ";")
	ext := imageMIMEs[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported image type in data URI: %s", mime)
	}
	return data, ext, nil
}

// fetch downloads an image over http(s), refusing internal hosts. The
// address check runs on every dialed IP, so names resolving to an internal
// address are refused too, also after redirects.
func (s *Server) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %q (only http/https)", parsed.Scheme)
	}
	if err := s.checkHostname(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("blocked address %q: %w", address, err)
			}
			ip := net.ParseIP(host)
			if ip == nil {
				return fmt.Errorf("blocked address %q", address)
			}
			return s.checkIP(ip)
		},
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		// No proxy: the dial check must see the image host itself.
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return s.checkHostname(req.URL.Hostname())
		},
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image too large: exceeds %d bytes", maxImageSize)
	}

	ct, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, imageMIMEs[strings.TrimSpace(ct)], nil
}

// checkHostname refuses metadata host names and internal IP literals before
// any connection is made.
func (s *Server) checkHostname(host string) error {
	if strings.EqualFold(strings.TrimSuffix(host, "."), "metadata.google.internal") {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return s.checkIP(ip)
	}
	return nil
}

// sharedAddressSpace is 100.64.0.0/10, home to some cloud metadata services.
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// checkBlockedIP rejects addresses that do not belong to a public host:
// loopback, private, link-local (cloud metadata included), shared,
// unspecified and multicast.
func checkBlockedIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("blocked host: loopback address %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("blocked host: link-local address %s", ip)
	case ip.IsPrivate(), sharedAddressSpace.Contains(ip):
		return fmt.Errorf("blocked host: private address %s", ip)
	case ip.IsUnspecified(), ip.IsMulticast():
		return fmt.Errorf("blocked host: address %s", ip)
	}
	return nil
}

// filenameFromURL takes the last path element of an http URL, falling back
// to a random name.
func filenameFromURL(rawURL, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	if strings.HasPrefix(rawURL, "data:") {
		return uuid.NewString() + ext
	}
	if parsed, err := url.Parse(rawURL); err == nil {
		base := path.Base(parsed.Path)
		if base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}
	return uuid.NewString() + ext
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = unsafeNameRe.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		name = uuid.NewString()
	}
	return name
}

// validateMagicBytes verifies the content matches the extension.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected, _, _ := strings.Cut(http.DetectContentType(data), ";")
	want := ext
	if want == ".jpeg" {
		want = ".jpg"
	}
	if imageMIMEs[detected] != want {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
