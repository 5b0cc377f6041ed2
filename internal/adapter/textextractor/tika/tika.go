// Package tika extracts plain text from uploaded documents through an
// Apache Tika server. It performs PUT /tika with Accept: text/plain.
// See: https://tika.apache.org/server/ for API details.
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/pkg/textx"
)

// Client is a minimal Tika HTTP client implementing domain.TextExtractor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// root constrains which paths may be read; empty allows any path.
	root string
}

// New constructs a Tika client reading files under uploadsRoot.
func New(baseURL, uploadsRoot string) *Client {
	root := ""
	if uploadsRoot != "" {
		if abs, err := filepath.Abs(uploadsRoot); err == nil {
			root = filepath.Clean(abs)
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		root:       root,
	}
}

var _ domain.TextExtractor = (*Client)(nil)

// ExtractPath uploads the file at path to the Tika server and returns
// sanitized plain text with whitespace collapsed.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	openPath, err := c.resolve(path)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(openPath)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if ct := contentType(fileName, raw); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w: %v", domain.ErrUpstreamTimeout, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return "", fmt.Errorf("%w: tika cannot parse %s", domain.ErrParseFailure, fileName)
		}
		return "", fmt.Errorf("%w: tika status %d", domain.ErrUpstreamTimeout, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}

	sanitized := textx.SanitizeText(string(b))
	return strings.Join(strings.Fields(sanitized), " "), nil
}

// resolve constrains path to the uploads root so a malicious file name
// cannot reach outside it.
func (c *Client) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("op=tika.resolve: %w", err)
	}
	abs = filepath.Clean(abs)
	if c.root == "" {
		return abs, nil
	}
	if abs != c.root && !strings.HasPrefix(abs, c.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path %s outside uploads root", domain.ErrInvalidArgument, abs)
	}
	return abs, nil
}

// contentType resolves the upload's MIME type: known resume extensions
// first, then content sniffing for extension-less or unknown files.
func contentType(fileName string, raw []byte) string {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	case "":
		return mimetype.Detect(raw).String()
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return mimetype.Detect(raw).String()
	}
}
