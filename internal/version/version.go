// Package version compares walletlink release versions and looks up the
// latest published release on GitHub.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Defaults for release lookups.
const (
	DefaultBaseURL = "https://api.github.com"
	DefaultRepo    = "mrz1836/walletlink"
	DefaultTimeout = 15 * time.Second

	maxBodySize = 64 * 1024
)

// ErrLookupFailed is returned when the release API answers with an error.
var ErrLookupFailed = errors.New("release lookup failed")

// Release is a published release.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Update reports how the running version relates to the latest release.
type Update struct {
	Current   string `json:"current"`
	Latest    string `json:"latest"`
	Available bool   `json:"update_available"`
	URL       string `json:"url,omitempty"`
}

// Checker looks up releases of one repository.
type Checker struct {
	baseURL   string
	repo      string
	client    *http.Client
	userAgent string
}

// Option configures a Checker.
type Option func(*Checker)

// WithBaseURL points the checker at another API root, such as a test server.
func WithBaseURL(url string) Option {
	return func(c *Checker) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Checker) { c.userAgent = ua }
}

// NewChecker creates a checker for repo ("owner/name").
func NewChecker(repo string, opts ...Option) *Checker {
	c := &Checker{
		baseURL:   DefaultBaseURL,
		repo:      repo,
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: "walletlink",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the latest release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	owner, name, ok := strings.Cut(c.repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: invalid repository %q", ErrLookupFailed, c.repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req) //nolint:gosec // URL is built from the configured API root
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.LimitReader(resp.Body, maxBodySize)
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrLookupFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var r Release
	if err := json.NewDecoder(body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &r, nil
}

// Check compares current with the latest release.
func (c *Checker) Check(ctx context.Context, current string) (Update, error) {
	r, err := c.Latest(ctx)
	if err != nil {
		return Update{Current: current}, err
	}
	return Update{
		Current:   current,
		Latest:    Normalize(r.TagName),
		Available: Compare(r.TagName, current) > 0,
		URL:       r.HTMLURL,
	}, nil
}

// Compare orders two versions: 1 when a is newer, -1 when b is newer, 0 when
// equal. Development builds ("dev", empty, or a commit hash) are older than
// any release.
func Compare(a, b string) int {
	devA, devB := isDev(a), isDev(b)
	switch {
	case devA && devB:
		return 0
	case devA:
		return -1
	case devB:
		return 1
	}

	pa, pb := parts(a), parts(b)
	for i := range 3 {
		if pa[i] != pb[i] {
			if pa[i] > pb[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Normalize strips a leading v, whitespace and any pre-release or build suffix.
func Normalize(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "vV")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	return v
}

func parts(v string) [3]int {
	var out [3]int
	for i, p := range strings.SplitN(Normalize(v), ".", 3) {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}

func isDev(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "dev" || isCommitHash(v)
}

// isCommitHash reports whether s looks like an abbreviated or full git hash.
// At least one letter is required so numeric versions are not mistaken for one.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	letter := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
			letter = true
		default:
			return false
		}
	}
	return letter
}
