package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/launchdeck/launchdeck/internal/domain"
)

// ErrInvalidSourceURL indicates the locator does not reference a repository.
var ErrInvalidSourceURL = errors.New("detect: source url is not a repository reference")

var repoRefPattern = regexp.MustCompile(`^https?://[^/]+/([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)

// RepoRef identifies a repository on the hosting service.
type RepoRef struct {
	Owner string
	Name  string
}

// ParseSourceURL extracts the owner/name pair from a repository locator.
func ParseSourceURL(sourceURL string) (RepoRef, error) {
	matches := repoRefPattern.FindStringSubmatch(strings.TrimSpace(sourceURL))
	if matches == nil {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidSourceURL, sourceURL)
	}
	return RepoRef{Owner: matches[1], Name: matches[2]}, nil
}

// Lister fetches the top-level entry names of a repository.
type Lister interface {
	ListTopLevel(ctx context.Context, ref RepoRef, token string) ([]string, error)
}

// Detector classifies a repository's technology stack from its top-level
// file listing. Listing failures degrade to a fixed fallback classification:
// a best-effort guess keeps the pipeline moving, which is deliberate.
type Detector struct {
	lister Lister
	logger *slog.Logger
}

// New constructs a Detector.
func New(lister Lister, logger *slog.Logger) Detector {
	return Detector{lister: lister, logger: logger}
}

// Fallback is the conservative default stack used when live inspection fails.
func Fallback() domain.StackClassification {
	return domain.StackClassification{
		Frontend: strPtr("react"),
		Backend:  strPtr("nodejs"),
		Database: strPtr("mongodb"),
	}
}

// Detect inspects the repository behind sourceURL. An unparseable locator is
// a fatal input error; any transport or listing failure returns the fallback
// classification and a nil error. The second return reports whether the
// fallback was used.
func (d Detector) Detect(ctx context.Context, sourceURL, token string) (domain.StackClassification, bool, error) {
	ref, err := ParseSourceURL(sourceURL)
	if err != nil {
		return domain.StackClassification{}, false, err
	}
	entries, err := d.lister.ListTopLevel(ctx, ref, token)
	if err != nil {
		d.logger.Warn("repository listing failed, using fallback stack",
			"owner", ref.Owner, "repo", ref.Name, "error", err)
		return Fallback(), true, nil
	}
	return Classify(entries), false, nil
}

type stackRule struct {
	label string
	match func(string) bool
}

// Frontend rules are ordered: framework-specific config files take priority
// over the generic manifest.
var frontendRules = []stackRule{
	{"nextjs", hasPrefix("next.config.")},
	{"nuxt", hasPrefix("nuxt.config.")},
	{"angular", exact("angular.json")},
	{"vue", exact("vue.config.js")},
	{"svelte", exact("svelte.config.js")},
	{"gatsby", hasPrefix("gatsby-config.")},
	{"vite", hasPrefix("vite.config.")},
	{"react", exact("package.json")},
	{"static", exact("index.html")},
}

var backendRules = []stackRule{
	{"go", exact("go.mod")},
	{"python", anyExact("requirements.txt", "pyproject.toml", "pipfile")},
	{"java", anyExact("pom.xml", "build.gradle", "build.gradle.kts")},
	{"ruby", exact("gemfile")},
	{"php", exact("composer.json")},
	{"nodejs", anyExact("server.js", "app.js", "server", "api", "backend")},
}

// databaseFragments map filename substrings to datastore labels, checked in
// order so the more specific names win.
var databaseFragments = []stackRule{
	{"mongodb", contains("mongo")},
	{"postgresql", contains("postgres")},
	{"mysql", contains("mysql")},
	{"redis", contains("redis")},
	{"sqlite", contains("sqlite")},
	{"dynamodb", contains("dynamo")},
	{"mongodb", exact("models")},
}

// Classify applies the heuristic rule sets to a top-level file listing.
// Categories are independent; within each, first match wins.
func Classify(entries []string) domain.StackClassification {
	lowered := make([]string, 0, len(entries))
	for _, entry := range entries {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(entry)))
	}
	var stack domain.StackClassification
	stack.Frontend = firstMatch(frontendRules, lowered)
	stack.Backend = firstMatch(backendRules, lowered)
	stack.Database = firstMatch(databaseFragments, lowered)
	return stack
}

func firstMatch(rules []stackRule, entries []string) *string {
	for _, rule := range rules {
		for _, entry := range entries {
			if rule.match(entry) {
				return strPtr(rule.label)
			}
		}
	}
	return nil
}

func exact(name string) func(string) bool {
	return func(entry string) bool { return entry == name }
}

func anyExact(names ...string) func(string) bool {
	return func(entry string) bool {
		for _, name := range names {
			if entry == name {
				return true
			}
		}
		return false
	}
}

func hasPrefix(prefix string) func(string) bool {
	return func(entry string) bool { return strings.HasPrefix(entry, prefix) }
}

func contains(fragment string) func(string) bool {
	return func(entry string) bool { return strings.Contains(entry, fragment) }
}

func strPtr(s string) *string {
	return &s
}

// HTTPLister lists repository contents through a GitHub-style REST API.
type HTTPLister struct {
	base   string
	client *http.Client
}

// NewHTTPLister constructs a lister against the given API base URL.
func NewHTTPLister(base string, timeout time.Duration) *HTTPLister {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLister{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// ListTopLevel fetches the repository's root content listing.
func (l *HTTPLister) ListTopLevel(ctx context.Context, ref RepoRef, token string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents", l.base, ref.Owner, ref.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("repository listing returned %s", resp.Status)
	}
	var contents []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return nil, fmt.Errorf("decode repository listing: %w", err)
	}
	names := make([]string, 0, len(contents))
	for _, entry := range contents {
		names = append(names, entry.Name)
	}
	return names, nil
}
