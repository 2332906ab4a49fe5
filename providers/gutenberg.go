package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// gutenbergBulkRate matches original_source's GutenbergConnector BULK_DOWNLOAD
// rate-limit preset (backend/tests/providers/literature/test_gutenberg.py:
// "config.base_requests_per_second == 0.5  # Conservative for bulk"):
// Gutenberg's mirrors ask bulk clients to stay well under one request/second.
const gutenbergBulkRate = 0.5

// maxGutenbergBodyBytes bounds how much of a work's plaintext this connector
// will read into memory; Gutenberg texts are occasionally tens of megabytes
// (anthologies, dictionaries) and the cache layer this entry ultimately
// flows through (providers.LiteratureStore -> version.Store -> cache.Cache)
// is sized for lexicon-scale payloads, not arbitrary bulk text.
const maxGutenbergBodyBytes = 8 * 1024 * 1024

// gutenbergTextURLs are tried in order; Gutenberg serves a work's plaintext
// from one of a few path shapes depending on how it was mirrored.
var gutenbergTextURLs = []string{
	"https://www.gutenberg.org/cache/epub/%s/pg%s.txt",
	"https://www.gutenberg.org/files/%s/%s-0.txt",
	"https://www.gutenberg.org/files/%s/%s.txt",
}

// gutenbergPayload is what LiteratureEntry.Payload holds for this provider.
type gutenbergPayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// GutenbergConnector fetches public-domain plaintext works from Project
// Gutenberg's mirrors, grounded on original_source's GutenbergConnector
// (backend/tests/providers/literature/test_gutenberg.py): fetch-by-id,
// rate-limited, returns nil on a not-found id rather than an error.
type GutenbergConnector struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewGutenbergConnector builds a connector. client may be nil, in which case
// a client with a generous per-request timeout is used (Gutenberg mirrors
// can be slow under bulk load).
func NewGutenbergConnector(client *http.Client) *GutenbergConnector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GutenbergConnector{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(gutenbergBulkRate), 1),
	}
}

func (g *GutenbergConnector) Name() string { return "gutenberg" }

// Fetch retrieves the plaintext of the Gutenberg work named by workID (its
// catalog number, e.g. "1342" for Pride and Prejudice). A work that doesn't
// exist on any mirror path returns (nil, nil), matching
// _fetch_from_provider's "Should return None for non-existent IDs".
func (g *GutenbergConnector) Fetch(ctx context.Context, workID string) (*LiteratureEntry, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("providers: gutenberg rate limiter: %w", err)
	}

	var body []byte
	found := false
	for _, tmpl := range gutenbergTextURLs {
		url := fmt.Sprintf(tmpl, workID, workID)
		b, ok, err := g.fetchOne(ctx, url)
		if err != nil {
			return nil, err
		}
		if ok {
			body, found = b, true
			break
		}
	}
	if !found {
		return nil, nil
	}

	text := string(body)
	payload, err := json.Marshal(gutenbergPayload{Title: extractGutenbergTitle(text), Text: text})
	if err != nil {
		return nil, fmt.Errorf("providers: marshal gutenberg payload: %w", err)
	}

	return &LiteratureEntry{
		Title:   extractGutenbergTitle(text),
		Payload: payload,
	}, nil
}

func (g *GutenbergConnector) fetchOne(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("providers: build gutenberg request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("providers: gutenberg request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("providers: gutenberg returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGutenbergBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("providers: read gutenberg body: %w", err)
	}
	return body, true, nil
}

// extractGutenbergTitle pulls the "Title: ..." line Gutenberg's standard
// header carries near the top of every plaintext release.
func extractGutenbergTitle(text string) string {
	const marker = "Title:"
	for _, line := range strings.SplitN(text, "\n", 200) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
	}
	return ""
}
