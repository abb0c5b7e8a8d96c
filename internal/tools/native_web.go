package tools

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/eino-ext/components/tool/bingsearch"
	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

const webSearchDesc = "Search the web for current information. Returns titles, URLs and snippets."

// NewWebSearchTool builds web_search on the configured provider:
// "duckduckgo" (no key), "google" (api_key + engine_id) or "bing" (api_key).
func NewWebSearchTool(ctx context.Context, cfg config.WebSearchConfig) (tool.InvokableTool, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var (
		t   tool.InvokableTool
		err error
	)
	switch cfg.Provider {
	case "", "duckduckgo":
		t, err = duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   "web_search",
			ToolDesc:   webSearchDesc,
			MaxResults: maxResults,
			Timeout:    15 * time.Second,
		})
	case "google":
		if cfg.APIKey == "" || cfg.EngineID == "" {
			return nil, fmt.Errorf("web_search: google requires api_key and engine_id")
		}
		t, err = googlesearch.NewTool(ctx, &googlesearch.Config{
			APIKey:         cfg.APIKey,
			SearchEngineID: cfg.EngineID,
			Num:            maxResults,
			ToolName:       "web_search",
			ToolDesc:       webSearchDesc,
		})
	case "bing":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("web_search: bing requires api_key")
		}
		t, err = bingsearch.NewTool(ctx, &bingsearch.Config{
			APIKey:     cfg.APIKey,
			MaxResults: maxResults,
			ToolName:   "web_search",
			ToolDesc:   webSearchDesc,
			Timeout:    15 * time.Second,
		})
	default:
		return nil, fmt.Errorf("web_search: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("web_search: init %s: %w", cfg.Provider, err)
	}
	return t, nil
}

type webFetchInput struct {
	URL string `json:"url"`
}

// Page is the readable content of a fetched URL.
type Page struct {
	URL     string `json:"url"`
	Status  int    `json:"status"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// WebFetcher fetches a URL and returns its readable text.
type WebFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewWebFetchTool creates web_fetch from cfg.
func NewWebFetchTool(cfg config.WebFetchConfig) *Func {
	f := &WebFetcher{
		client:    &http.Client{Timeout: cfg.Timeout.Duration()},
		maxBytes:  int64(max(cfg.MaxBodyKB, 1)) * 1024,
		userAgent: cfg.UserAgent,
	}
	spec := ToolSpec{
		Name:        "web_fetch",
		Description: "Fetch a web page and return its text content. HTML is reduced to readable text.",
		Parameters: map[string]ParamSpec{
			"url": {Type: "string", Description: "The http(s) URL to fetch", Required: true},
		},
	}
	return NewFunc(spec, func(ctx context.Context, in webFetchInput) (any, error) {
		return f.Fetch(ctx, in.URL)
	})
}

// Fetch downloads url, reading at most the configured body size.
func (f *WebFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Page{}, fmt.Errorf("web_fetch: unsupported url %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("web_fetch: create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("web_fetch: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, f.maxBytes)
	out := Page{URL: url, Status: resp.StatusCode}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return Page{}, fmt.Errorf("web_fetch: parse html: %w", err)
		}
		out.Title, out.Content = extractText(doc)
		return out, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return Page{}, fmt.Errorf("web_fetch: read body: %w", err)
	}
	out.Content = string(data)
	return out, nil
}

// extractText returns the page title and the whitespace-collapsed body text.
func extractText(doc *goquery.Document) (string, string) {
	doc.Find("script, style, noscript, svg, iframe").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	return title, strings.Join(strings.Fields(text), " ")
}
