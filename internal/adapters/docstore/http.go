// Package docstore implements ports.DocumentStore over a GitHub-contents
// compatible HTTP API and over S3.
package docstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ammerola/stockbook/internal/core/ports"
)

const (
	mediaTypeJSON = "application/vnd.github+json"
	mediaTypeRaw  = "application/vnd.github.raw"
)

// HTTPConfig configures an HTTP document store client.
type HTTPConfig struct {
	// BaseURL is the repository API root, e.g. https://api.github.com/repos/o/r.
	BaseURL        string
	Token          string
	Branch         string
	CommitterName  string
	CommitterEmail string
	RequestRate    float64
	RequestBurst   int
	Timeout        time.Duration
	// Client overrides the default http.Client.
	Client *http.Client
}

// HTTPStore talks to a GitHub-contents compatible API.
type HTTPStore struct {
	base      string
	token     string
	branch    string
	committer committer
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ ports.DocumentStore = (*HTTPStore)(nil)

type committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type contentResponse struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message   string     `json:"message"`
	Content   string     `json:"content"`
	SHA       string     `json:"sha,omitempty"`
	Branch    string     `json:"branch,omitempty"`
	Committer *committer `json:"committer,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type deleteRequest struct {
	Message   string     `json:"message"`
	SHA       string     `json:"sha"`
	Branch    string     `json:"branch,omitempty"`
	Committer *committer `json:"committer,omitempty"`
}

// NewHTTPStore creates a new HTTP document store client
func NewHTTPStore(cfg HTTPConfig, logger *slog.Logger) (*HTTPStore, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("docstore: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("docstore: invalid base URL: %w", err)
	}
	if cfg.RequestRate <= 0 {
		cfg.RequestRate = 5
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 1
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPStore{
		base:      strings.TrimSuffix(cfg.BaseURL, "/"),
		token:     cfg.Token,
		branch:    cfg.Branch,
		committer: committer{Name: cfg.CommitterName, Email: cfg.CommitterEmail},
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.RequestBurst),
		logger:    logger.With(slog.String("component", "docstore.http")),
	}, nil
}

// Load fetches a file and its blob sha.
func (s *HTTPStore) Load(ctx context.Context, path string) (ports.Document, error) {
	var body contentResponse
	if err := s.do(ctx, "load", http.MethodGet, path, s.contentsURL(path, true), nil, mediaTypeJSON, &body); err != nil {
		return ports.Document{}, err
	}
	if body.Type != "" && body.Type != "file" {
		return ports.Document{}, &ports.TransportError{Op: "load", Path: path,
			Err: fmt.Errorf("%s is a %s, not a file", path, body.Type)}
	}

	doc := ports.Document{Path: path, Version: ports.VersionToken(body.SHA)}
	switch body.Encoding {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
		if err != nil {
			return ports.Document{}, fmt.Errorf("%w: %s: %v", ports.ErrCorrupt, path, err)
		}
		doc.Data = data
	default:
		// Large files come back without inline content.
		data, err := s.loadRaw(ctx, path)
		if err != nil {
			return ports.Document{}, err
		}
		doc.Data = data
	}
	return doc, nil
}

func (s *HTTPStore) loadRaw(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.do(ctx, "load", http.MethodGet, path, s.contentsURL(path, true), nil, mediaTypeRaw, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes data at path. An empty expected version omits the sha, which
// the API rejects when the file already exists.
func (s *HTTPStore) Save(ctx context.Context, path string, data []byte, expected ports.VersionToken, message string) (ports.VersionToken, error) {
	req := putRequest{
		Message:   message,
		Content:   base64.StdEncoding.EncodeToString(data),
		SHA:       string(expected),
		Branch:    s.branch,
		Committer: s.committerOrNil(),
	}
	var body putResponse
	if err := s.do(ctx, "save", http.MethodPut, path, s.contentsURL(path, false), req, mediaTypeJSON, &body); err != nil {
		var conflict *ports.ConflictError
		if errors.As(err, &conflict) {
			conflict.Expected = expected
		}
		return ports.NoVersion, err
	}
	if body.Content.SHA == "" {
		return ports.NoVersion, &ports.TransportError{Op: "save", Path: path, Err: errors.New("response carried no sha")}
	}

	s.logger.DebugContext(ctx, "saved document",
		slog.String("path", path),
		slog.String("version", body.Content.SHA),
		slog.Int("bytes", len(data)))
	return ports.VersionToken(body.Content.SHA), nil
}

// Delete removes the file at path. The API addresses the file by its sha.
func (s *HTTPStore) Delete(ctx context.Context, path string, version ports.VersionToken, message string) error {
	req := deleteRequest{
		Message:   message,
		SHA:       string(version),
		Branch:    s.branch,
		Committer: s.committerOrNil(),
	}
	return s.do(ctx, "delete", http.MethodDelete, path, s.contentsURL(path, false), req, mediaTypeJSON, nil)
}

// List returns the files directly under dir.
func (s *HTTPStore) List(ctx context.Context, dir string) ([]ports.Entry, error) {
	var body []contentResponse
	err := s.do(ctx, "list", http.MethodGet, dir, s.contentsURL(dir, true), nil, mediaTypeJSON, &body)
	if errors.Is(err, ports.ErrNotFound) {
		return []ports.Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]ports.Entry, 0, len(body))
	for _, c := range body {
		if c.Type != "file" {
			continue
		}
		entries = append(entries, ports.Entry{
			Path:    c.Path,
			Version: ports.VersionToken(c.SHA),
			Size:    c.Size,
		})
	}
	return entries, nil
}

func (s *HTTPStore) committerOrNil() *committer {
	if s.committer.Name == "" || s.committer.Email == "" {
		return nil
	}
	c := s.committer
	return &c
}

func (s *HTTPStore) contentsURL(path string, withRef bool) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u := s.base + "/contents/" + strings.Join(segments, "/")
	if withRef && s.branch != "" {
		u += "?ref=" + url.QueryEscape(s.branch)
	}
	return u
}

// do runs one throttled request. out may be nil, a *bytes.Buffer for raw
// bodies, or a value to decode JSON into.
func (s *HTTPStore) do(ctx context.Context, op, method, path, target string, in any, accept string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &ports.TransportError{Op: op, Path: path, Err: err}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &ports.TransportError{Op: op, Path: path, Err: err}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return &ports.TransportError{Op: op, Path: path, Err: err}
	}
	defer resp.Body.Close()

	s.logger.DebugContext(ctx, "store request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if err := statusError(op, path, resp); err != nil {
		return err
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		if _, err := io.Copy(dst, resp.Body); err != nil {
			return &ports.TransportError{Op: op, Path: path, StatusCode: resp.StatusCode, Err: err}
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return &ports.TransportError{Op: op, Path: path, StatusCode: resp.StatusCode,
				Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
}

// statusError maps a non-2xx response to the store error contract.
func statusError(op, path string, resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	msg := readMessage(resp.Body)
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ports.ErrNotFound, path)
	case code == http.StatusConflict, code == http.StatusPreconditionFailed, code == http.StatusUnprocessableEntity:
		return &ports.ConflictError{Path: path}
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return &ports.TransportError{
			Op:          op,
			Path:        path,
			StatusCode:  code,
			RateLimited: true,
			RetryAfter:  retryAfter(resp.Header, time.Now()),
			Err:         errors.New(msg),
		}
	default:
		return &ports.TransportError{Op: op, Path: path, StatusCode: code, Err: errors.New(msg)}
	}
}

func readMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return "unexpected response"
}

// retryAfter reads Retry-After seconds, falling back to the rate limit reset
// epoch.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return 0
}
