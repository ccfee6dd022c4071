package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/iabalyuk/advisorbot/model"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const defaultTable = "scientific_advisors"

// SupabaseConfig holds what the client needs to reach the PostgREST endpoint.
type SupabaseConfig struct {
	BaseURL   string
	APIKey    string
	Table     string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
}

// SupabaseClient reads advisors from a Supabase table through its REST API
type SupabaseClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	table      string
	log        zerolog.Logger
}

// NewSupabaseClient creates a new directory client
func NewSupabaseClient(cfg SupabaseConfig, log zerolog.Logger) *SupabaseClient {
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	return &SupabaseClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		limiter: limiter,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		table:   table,
		log:     log.With().Str("component", "supabase").Logger(),
	}
}

// Search implements Backend.
func (c *SupabaseClient) Search(ctx context.Context, predicate string) ([]model.Advisor, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(c.table))
	if predicate != "" {
		query := url.Values{}
		query.Set("or", orFilter(predicate))
		endpoint += "?" + query.Encode()
	}

	var advisors []model.Advisor
	if err := c.doRequest(ctx, http.MethodGet, endpoint, &advisors); err != nil {
		return nil, fmt.Errorf("failed to search advisors: %w", err)
	}
	return advisors, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// quoteEscaper escapes a value for a double-quoted PostgREST operand.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// orFilter builds the PostgREST filter matching last name OR research field.
// The pattern is double-quoted so commas and parentheses in user input stay
// literal; % and _ are escaped so the match is a plain substring match.
func orFilter(predicate string) string {
	pattern := `"*` + quoteEscaper.Replace(likeEscaper.Replace(predicate)) + `*"`
	return fmt.Sprintf("(last_name.ilike.%s,research_field.ilike.%s)", pattern, pattern)
}

// doRequest handles the common logic for making requests to the REST API
func (c *SupabaseClient) doRequest(ctx context.Context, method, endpoint string, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter (%s %s): %w", method, endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("method", method).Str("url", endpoint).Msg("Making request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("request context error (%s %s): %w", method, endpoint, ctxErr)
		}
		return fmt.Errorf("failed to execute request (%s %s): %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body (%s %s): %w", method, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", endpoint).Bytes("body", truncate(body, 512)).Msg("Unexpected status code")
		return fmt.Errorf("unexpected status code %d for %s %s", resp.StatusCode, method, endpoint)
	}

	if target != nil {
		if err := json.Unmarshal(body, target); err != nil {
			return &model.DataError{Key: c.table, Reason: "malformed directory response", Err: err}
		}
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
