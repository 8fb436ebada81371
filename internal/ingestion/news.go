package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Benny93/sentinel-go/internal/logging"
	"github.com/Benny93/sentinel-go/internal/risk"
)

const (
	// DefaultNewsBaseURL is the NewsData.io API root.
	DefaultNewsBaseURL = "https://newsdata.io/api/1"

	// DefaultNewsQuery stays under the provider's 100 character query limit.
	DefaultNewsQuery = "supply chain OR disruption OR tariff OR China OR Taiwan"

	// DefaultNewsTimeout bounds a single fetch.
	DefaultNewsTimeout = 15 * time.Second

	// DefaultMaxArticles is the number of articles requested per cycle.
	DefaultMaxArticles = 10

	// NewsRelevance is the fixed relevance assigned to fetched articles.
	NewsRelevance = 0.85

	// newsPageLimit is the provider's per-request page size cap.
	newsPageLimit = 10

	newsDateLayout = "2006-01-02 15:04:05"
)

// NewsOptions configures a NewsClient.
type NewsOptions struct {
	APIKey      string
	BaseURL     string
	Query       string
	MaxArticles int
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewsClient fetches recent articles from NewsData.io.
type NewsClient struct {
	apiKey     string
	baseURL    string
	query      string
	max        int
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time
}

// NewNewsClient creates a client, filling unset options with defaults.
func NewNewsClient(opts NewsOptions) *NewsClient {
	c := &NewsClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		query:      opts.Query,
		max:        opts.MaxArticles,
		httpClient: opts.HTTPClient,
		log:        logging.OrDefault(opts.Logger),
		now:        opts.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultNewsBaseURL
	}
	if c.query == "" {
		c.query = DefaultNewsQuery
	}
	if c.max <= 0 {
		c.max = DefaultMaxArticles
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultNewsTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *NewsClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type newsResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

type newsArticle struct {
	Title       string `json:"title"`
	PubDate     string `json:"pubDate"`
	SourceID    string `json:"source_id"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

type newsErrorResult struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Fetch requests the latest articles and maps them to signals.
func (c *NewsClient) Fetch(ctx context.Context) ([]risk.Signal, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("news api key not set")
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("q", c.query)
	params.Set("language", "en")
	params.Set("size", strconv.Itoa(min(c.max, newsPageLimit)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("newsdata returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var nr newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if nr.Status != "success" {
		return nil, fmt.Errorf("newsdata error: %s", nr.errorMessage())
	}

	var articles []newsArticle
	if len(nr.Results) > 0 {
		if err := json.Unmarshal(nr.Results, &articles); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if len(articles) > c.max {
		articles = articles[:c.max]
	}

	signals := make([]risk.Signal, 0, len(articles))
	for _, a := range articles {
		signals = append(signals, c.toSignal(a))
	}
	return signals, nil
}

// Latest is Fetch without failure: a missing key or any fetch error is
// logged and yields no signals.
func (c *NewsClient) Latest(ctx context.Context) []risk.Signal {
	if !c.Enabled() {
		c.logger().Error("news api key not set, skipping live news")
		return nil
	}
	signals, err := c.Fetch(ctx)
	if err != nil {
		c.log.Error("news fetch failed", "error", err)
		return nil
	}
	c.log.Info("news collected", "articles", len(signals))
	return signals
}

func (c *NewsClient) logger() *slog.Logger {
	if c == nil {
		return slog.Default()
	}
	return c.log
}

func (c *NewsClient) toSignal(a newsArticle) risk.Signal {
	sig := risk.Signal{
		Title:          strings.TrimSpace(a.Title),
		Summary:        strings.TrimSpace(a.Description),
		Source:         a.SourceID,
		URL:            a.Link,
		RelevanceScore: NewsRelevance,
	}
	if sig.Title == "" {
		sig.Title = "No title"
	}
	if sig.Source == "" {
		sig.Source = "Unknown"
	}
	if t, err := time.Parse(newsDateLayout, a.PubDate); err == nil {
		sig.Published = t.UTC()
	} else {
		sig.Published = c.now().UTC()
	}
	return sig
}

func (r newsResponse) errorMessage() string {
	if r.Message != "" {
		return r.Message
	}
	var er newsErrorResult
	if err := json.Unmarshal(r.Results, &er); err == nil && er.Message != "" {
		return er.Message
	}
	return "unknown"
}
