package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"botpanel/internal/cache"
	"botpanel/internal/metrics"
)

const defaultStatsCacheTTL = time.Minute

// ErrUnauthorized indicates the bot backend rejected the API key.
var ErrUnauthorized = errors.New("bot api unauthorized")

// Client provides typed access to the bot backend API.
type Client struct {
	logger   *slog.Logger
	baseURL  string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	metrics  *metrics.Metrics
	cache    *cache.Redis
	statsTTL time.Duration
}

// Config holds bot backend client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New creates a new bot backend client.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:   logger.With("component", "botapi"),
		baseURL:  base,
		apiKey:   cfg.APIKey,
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
		metrics:  metrics,
		cache:    redis,
		statsTTL: defaultStatsCacheTTL,
	}
}

// Enabled reports whether a backend base URL is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// responseEnvelope tolerates the backend's inconsistent response shapes:
// `{success, data}`, `{data: [...]}`, `{status, message, data}` and bare
// arrays or objects all decode into the same envelope.
type responseEnvelope struct {
	Success bool
	Message string
	Data    json.RawMessage
}

func (r *responseEnvelope) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		r.Success = true
		r.Data = append(json.RawMessage(nil), trimmed...)
		return nil
	}

	type alias struct {
		Success *bool           `json:"success"`
		Status  json.RawMessage `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.Message = strings.TrimSpace(a.Message)
	r.Data = a.Data

	switch {
	case a.Success != nil:
		r.Success = *a.Success
	case len(a.Status) != 0:
		var boolVal bool
		if err := json.Unmarshal(a.Status, &boolVal); err == nil {
			r.Success = boolVal
		} else {
			str := strings.Trim(strings.TrimSpace(string(a.Status)), `"`)
			r.Success = strings.EqualFold(str, "true") || strings.EqualFold(str, "success") || str == "1"
		}
	default:
		// No explicit flag means a bare payload object.
		r.Success = true
		if len(a.Data) == 0 {
			r.Data = append(json.RawMessage(nil), data...)
		}
	}
	return nil
}

// Product is a catalog entry as the bot backend reports it.
type Product struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description"`
	StockCount  int64  `json:"stock_count"`
}

// Variant is a product variant entry.
type Variant struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
}

// StockItem is one sellable unit held by the bot backend.
type StockItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Data      string `json:"data"`
	IsSold    bool   `json:"is_sold"`
}

// Stats is the bot backend's aggregate counters payload.
type Stats struct {
	TotalProducts int64          `json:"total_products"`
	TotalStock    int64          `json:"total_stock"`
	TotalSold     int64          `json:"total_sold"`
	Revenue       int64          `json:"revenue"`
	Raw           map[string]any `json:"raw,omitempty"`
}

// Stats fetches the backend counters, cached briefly when redis is wired.
func (c *Client) Stats(ctx context.Context, forceRefresh bool) (*Stats, error) {
	const cacheKey = "botapi:stats"
	if c.cache != nil && !forceRefresh {
		var cached Stats
		ok, err := c.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			c.logger.Warn("read stats cache failed", "error", err)
		} else if ok {
			return &cached, nil
		}
	}

	env, err := c.call(ctx, http.MethodGet, "/api/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats Stats
	if len(env.Data) != 0 {
		if err := json.Unmarshal(env.Data, &stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		_ = json.Unmarshal(env.Data, &stats.Raw)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, stats, c.statsTTL); err != nil {
			c.logger.Warn("set stats cache failed", "error", err)
		}
	}
	return &stats, nil
}

// ListProducts retrieves the backend product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/products", nil)
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := decodeList(env.Data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// CreateProductRequest holds fields to create a backend product.
type CreateProductRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateProduct registers a product on the bot backend.
func (c *Client) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	env, err := c.callJSON(ctx, http.MethodPost, "/api/products", req)
	if err != nil {
		return nil, err
	}
	var p Product
	if len(env.Data) != 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
	}
	return &p, nil
}

// UpdateProduct updates a backend product by ID.
func (c *Client) UpdateProduct(ctx context.Context, id string, req CreateProductRequest) error {
	_, err := c.callJSON(ctx, http.MethodPut, "/api/products/"+id, req)
	return err
}

// DeleteProduct removes a backend product by ID.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodDelete, "/api/products/"+id, nil)
	return err
}

// ListVariants retrieves the variants of one backend product.
func (c *Client) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/products/"+productID+"/variants", nil)
	if err != nil {
		return nil, err
	}
	var variants []Variant
	if err := decodeList(env.Data, &variants); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	return variants, nil
}

// AddVariant registers a variant on a backend product.
func (c *Client) AddVariant(ctx context.Context, productID, name string, price int64) (*Variant, error) {
	env, err := c.callJSON(ctx, http.MethodPost, "/api/products/"+productID+"/variants", map[string]any{
		"name":  name,
		"price": price,
	})
	if err != nil {
		return nil, err
	}
	var v Variant
	if len(env.Data) != 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode variant: %w", err)
		}
	}
	return &v, nil
}

// ListStock retrieves stock rows for one backend product.
func (c *Client) ListStock(ctx context.Context, productID string) ([]StockItem, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/products/"+productID+"/stock", nil)
	if err != nil {
		return nil, err
	}
	var items []StockItem
	if err := decodeList(env.Data, &items); err != nil {
		return nil, fmt.Errorf("decode stock: %w", err)
	}
	return items, nil
}

// AddStock pushes stock lines for a backend product, returning the accepted count.
func (c *Client) AddStock(ctx context.Context, productID string, lines []string, variantID string) (int, error) {
	payload := map[string]any{"items": lines}
	if variantID != "" {
		payload["variant_id"] = variantID
	}
	env, err := c.callJSON(ctx, http.MethodPost, "/api/products/"+productID+"/stock", payload)
	if err != nil {
		return 0, err
	}
	var result struct {
		Added int `json:"added"`
		Count int `json:"count"`
	}
	if len(env.Data) != 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return len(lines), nil
		}
	}
	if result.Added > 0 {
		return result.Added, nil
	}
	if result.Count > 0 {
		return result.Count, nil
	}
	return len(lines), nil
}

// BroadcastRequest holds a broadcast message with an optional image.
type BroadcastRequest struct {
	Message   string
	ImageName string
	Image     io.Reader
}

// BroadcastResult reports how many recipients the backend reached.
type BroadcastResult struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

// Broadcast sends a message to every bot customer via the backend. With an
// image attached the request goes out as multipart form data.
func (c *Client) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	var (
		env *responseEnvelope
		err error
	)
	if req.Image != nil {
		env, err = c.broadcastMultipart(ctx, req)
	} else {
		env, err = c.callJSON(ctx, http.MethodPost, "/api/broadcast", map[string]string{
			"message": req.Message,
		})
	}
	if err != nil {
		return nil, err
	}

	var result BroadcastResult
	if len(env.Data) != 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return nil, fmt.Errorf("decode broadcast result: %w", err)
		}
	}
	return &result, nil
}

func (c *Client) broadcastMultipart(ctx context.Context, req BroadcastRequest) (*responseEnvelope, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("message", req.Message); err != nil {
		return nil, fmt.Errorf("write message field: %w", err)
	}
	name := req.ImageName
	if name == "" {
		name = "image.png"
	}
	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, req.Image); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	return c.do(ctx, http.MethodPost, "/api/broadcast", &buf, writer.FormDataContentType())
}

func (c *Client) callJSON(ctx context.Context, method, endpoint string, payload any) (*responseEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.call(ctx, method, endpoint, bytes.NewReader(body))
}

func (c *Client) call(ctx context.Context, method, endpoint string, body io.Reader) (*responseEnvelope, error) {
	return c.do(ctx, method, endpoint, body, "application/json")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*responseEnvelope, error) {
	if c.baseURL == "" {
		return nil, errors.New("bot api base url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.BotAPIRequests.WithLabelValues(endpoint, "error").Inc()
		}
		return nil, fmt.Errorf("bot api request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	if c.metrics != nil {
		c.metrics.BotAPIRequests.WithLabelValues(endpoint, statusLabel).Inc()
		c.metrics.BotAPILatency.WithLabelValues(endpoint, statusLabel).Observe(time.Since(start).Seconds())
	}

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status=%d", ErrUnauthorized, res.StatusCode)
	}
	if res.StatusCode >= 400 {
		snippet := strings.TrimSpace(string(bodyBytes))
		var env responseEnvelope
		if err := json.Unmarshal(bodyBytes, &env); err == nil && env.Message != "" {
			snippet = env.Message
		}
		return nil, fmt.Errorf("bot api %s error: status=%d %s", endpoint, res.StatusCode, snippet)
	}

	var env responseEnvelope
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		env.Success = true
		return &env, nil
	}
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = "bot api operation failed"
		}
		return nil, fmt.Errorf("bot api %s error: %s", endpoint, message)
	}
	return &env, nil
}

// decodeList accepts both a bare array and an object wrapping one under a
// conventional key.
func decodeList(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, dest)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	for _, key := range []string{"data", "items", "products", "stock", "variants", "list"} {
		if inner, ok := wrapper[key]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '[' {
			return json.Unmarshal(inner, dest)
		}
	}
	return nil
}
