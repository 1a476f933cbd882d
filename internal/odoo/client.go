// Package odoo provides the JSON-RPC client and polling synchronization
// worker for the Odoo ERP integration.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/httpclient"
)

const (
	authenticatePath = "/web/session/authenticate"
	callKWPath       = "/web/dataset/call_kw"

	// rpcTimeout bounds every RPC call.
	rpcTimeout = 8 * time.Second

	// odooTimeLayout is the timestamp format Odoo uses in domain filters
	// and write_date fields.
	odooTimeLayout = "2006-01-02 15:04:05"
)

// ClientConfig holds ERP connection settings.
type ClientConfig struct {
	URL      string
	Database string
	Login    string
	Password string
}

// Client is a minimal Odoo JSON-RPC client. It authenticates against the
// web session endpoint and issues search_read calls, carrying the session
// cookie between requests.
//
// Thread-safe for concurrent use.
type Client struct {
	config ClientConfig
	http   *httpclient.Client
	logger *slog.Logger

	mu      sync.Mutex
	cookies []*http.Cookie
	uid     int64
}

// NewClient creates an Odoo client. The HTTP client is shared with the rest
// of the application.
func NewClient(config ClientConfig, httpClient *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		http:   httpClient,
		logger: logger.With("service", "odoo"),
	}
}

// Configured reports whether all required connection settings are present.
func (c *Client) Configured() bool {
	return c.config.URL != "" && c.config.Database != "" &&
		c.config.Login != "" && c.config.Password != ""
}

// rpcRequest is the JSON-RPC 2.0 envelope Odoo expects.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call posts a JSON-RPC request and decodes the result envelope.
func (c *Client) call(ctx context.Context, path string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params,
		ID:      time.Now().UnixNano(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, errors.New(err).
			Component("odoo").
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("odoo rpc returned status %d", resp.StatusCode).
			Component("odoo").
			Category(errors.CategoryHTTP).
			Context("path", path).
			Context("status_code", resp.StatusCode).
			Build()
	}

	// Session cookies are set on authenticate and must accompany every
	// subsequent call.
	if cookies := resp.Cookies(); len(cookies) > 0 {
		c.mu.Lock()
		c.cookies = cookies
		c.mu.Unlock()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("odoo").
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}

	var envelope rpcResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Newf("decoding odoo rpc response: %w", err).
			Component("odoo").
			Category(errors.CategoryIntegration).
			Context("path", path).
			Build()
	}
	if envelope.Error != nil {
		return nil, errors.New(envelope.Error).
			Component("odoo").
			Category(errors.CategoryIntegration).
			Context("path", path).
			Build()
	}
	return envelope.Result, nil
}

// Authenticate opens an Odoo web session. The returned session cookie is
// held by the client for subsequent calls.
func (c *Client) Authenticate(ctx context.Context) error {
	result, err := c.call(ctx, authenticatePath, map[string]any{
		"db":       c.config.Database,
		"login":    c.config.Login,
		"password": c.config.Password,
	})
	if err != nil {
		return err
	}

	var session struct {
		UID json.Number `json:"uid"`
	}
	// uid is false (not a number) when credentials are rejected
	if err := json.Unmarshal(result, &session); err != nil || session.UID == "" {
		return errors.Newf("odoo authentication rejected for login %q", c.config.Login).
			Component("odoo").
			Category(errors.CategoryIntegration).
			Build()
	}
	uid, err := session.UID.Int64()
	if err != nil || uid <= 0 {
		return errors.Newf("odoo authentication rejected for login %q", c.config.Login).
			Component("odoo").
			Category(errors.CategoryIntegration).
			Build()
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()

	c.logger.Debug("odoo session established", "uid", uid)
	return nil
}

// SearchRead issues a generic search_read call against model with the given
// domain filter and field list.
func (c *Client) SearchRead(ctx context.Context, model string, domain []any, fields []string, limit int) (json.RawMessage, error) {
	return c.call(ctx, callKWPath, map[string]any{
		"model":  model,
		"method": "search_read",
		"args":   []any{domain, fields},
		"kwargs": map[string]any{
			"limit": limit,
			"order": "write_date asc, id asc",
		},
	})
}

// FetchApprovalOrders pulls sale orders updated since the given watermark or
// with an id above the last seen one. The OR condition keeps records updated
// exactly at the watermark boundary from being skipped due to timestamp
// granularity.
func (c *Client) FetchApprovalOrders(ctx context.Context, since time.Time, lastID int64, limit int) ([]SaleOrder, error) {
	domain := []any{
		"|",
		[]any{"write_date", ">=", since.UTC().Format(odooTimeLayout)},
		[]any{"id", ">", lastID},
	}
	fields := []string{"id", "name", "state", "approval_state", "amount_total", "write_date", "partner_id"}

	result, err := c.SearchRead(ctx, "sale.order", domain, fields, limit)
	if err != nil {
		return nil, err
	}

	var orders []SaleOrder
	if err := json.Unmarshal(result, &orders); err != nil {
		return nil, errors.Newf("decoding sale orders: %w", err).
			Component("odoo").
			Category(errors.CategoryIntegration).
			Build()
	}
	return orders, nil
}

