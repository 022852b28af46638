package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wavechart/internal/model"
)

// DefaultCandleLimit is the number of candles requested when no limit is given.
const DefaultCandleLimit = 200

// maxBodyBytes caps pull response bodies.
const maxBodyBytes = 8 << 20

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetPrice fetches the current price snapshot.
func (c *RESTClient) GetPrice(ctx context.Context) (*model.PriceSnapshot, error) {
	body, err := c.get(ctx, "/price", nil)
	if err != nil {
		return nil, err
	}
	return DecodePrice(body)
}

// GetAnalyses fetches the analysis batch of every tracked timeframe.
func (c *RESTClient) GetAnalyses(ctx context.Context) ([]model.TimeframeAnalysis, error) {
	body, err := c.get(ctx, "/analysis/all", nil)
	if err != nil {
		return nil, err
	}
	return DecodeAnalysis(body)
}

// GetCandles fetches the candle series of one timeframe. A non-positive limit uses DefaultCandleLimit.
func (c *RESTClient) GetCandles(ctx context.Context, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if !tf.IsValid() {
		return nil, fmt.Errorf("get candles: invalid timeframe %q", tf)
	}
	if limit <= 0 {
		limit = DefaultCandleLimit
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	body, err := c.get(ctx, "/candles/"+url.PathEscape(string(tf)), query)
	if err != nil {
		return nil, err
	}
	return DecodeCandles(body)
}

func (c *RESTClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &model.FetchError{Endpoint: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.FetchError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &model.FetchError{Endpoint: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.FetchError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("backend error: %s", strings.TrimSpace(string(body))),
		}
	}
	return body, nil
}
