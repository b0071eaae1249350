package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
)

// DocsToolName is the tool name task definitions use to request the docs page.
const DocsToolName = "docs_scrape"

// DocsRetriever fetches one fixed reference page and returns its readable text.
type DocsRetriever struct {
	url      string
	maxChars int
	client   *resty.Client
}

// NewDocsRetriever creates a retriever for url. maxChars <= 0 disables truncation.
func NewDocsRetriever(url string, maxChars, poolSize int) *DocsRetriever {
	client := resty.NewWithClient(NewPooledHTTPClient(poolSize, 30*time.Second)).
		SetRetryCount(0).
		SetHeader("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5").
		SetHeader("User-Agent", "support-crew-gateway/1.0")
	return &DocsRetriever{url: url, maxChars: maxChars, client: client}
}

func (d *DocsRetriever) Name() string { return DocsToolName }

func (d *DocsRetriever) Description() string {
	return "Read the content of the product's reference documentation page (" + d.url + "). Takes no arguments."
}

// Invoke fetches the page and extracts its text.
func (d *DocsRetriever) Invoke(ctx context.Context) (string, error) {
	start := time.Now()

	resp, err := d.client.R().SetContext(ctx).Get(d.url)
	if err != nil {
		return "", fmt.Errorf("fetch docs: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch docs: status %d", resp.StatusCode())
	}

	text, err := ExtractText(bytes.NewReader(resp.Body()))
	if err != nil {
		return "", fmt.Errorf("extract docs text: %w", err)
	}

	metrics.DocsFetchDuration.Observe(time.Since(start).Seconds())
	return truncateRunes(text, d.maxChars), nil
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "template": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true, "section": true, "article": true,
	"header": true, "footer": true, "title": true, "blockquote": true,
}

// ExtractText returns the visible text of an HTML document, one block per line.
func ExtractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return collapseWhitespace(b.String()), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipTags[string(name)] {
				skip++
			}
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipTags[string(name)] && skip > 0 {
				skip--
			}
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
