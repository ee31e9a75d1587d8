package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/fieldsync/internal/errors"
	"github.com/fieldops/fieldsync/internal/models"
)

// TokenSource supplies the bearer credential for authorized calls. The
// session/auth collaborator implements it; the client never caches tokens.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed bearer credential.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// RequestTimeout bounds every call; the connectivity probe applies
	// its own, shorter context deadline on top.
	RequestTimeout time.Duration
}

// Client is the typed remote API client: bearer injection, bounded
// timeouts, and the {error, message, data} envelope handled in one place.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a Client. A nil TokenSource sends unauthenticated
// requests.
func NewClient(cfg Config, tokens TokenSource) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Probe issues a minimal HEAD request against the API base to confirm the
// service is actually reachable. Any failure means unreachable; callers do
// not distinguish DNS errors from timeouts.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return errors.Wrap(errors.ErrProbeFailed, "failed to build probe request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrProbeFailed, "remote unreachable", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// Any response proves reachability; the probe is not a health check.
	return nil
}

// FetchCourierStores returns the stores assigned to the signed-in courier.
func (c *Client) FetchCourierStores(ctx context.Context) ([]models.Store, error) {
	data, err := c.getJSON(ctx, "/api/stores/courier")
	if err != nil {
		return nil, err
	}

	var remotes []remoteStore
	if err := json.Unmarshal(data, &remotes); err != nil {
		return nil, errors.Wrap(errors.ErrDecodeFailed, "failed to decode stores", err)
	}

	stores := make([]models.Store, 0, len(remotes))
	for i := range remotes {
		s, err := remotes[i].toModel()
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// FetchActiveProducts returns the products currently available for
// restocking reports.
func (c *Client) FetchActiveProducts(ctx context.Context) ([]models.Product, error) {
	data, err := c.getJSON(ctx, "/api/products")
	if err != nil {
		return nil, err
	}

	var remotes []remoteProduct
	if err := json.Unmarshal(data, &remotes); err != nil {
		return nil, errors.Wrap(errors.ErrDecodeFailed, "failed to decode products", err)
	}

	products := make([]models.Product, 0, len(remotes))
	for i := range remotes {
		if !remotes[i].Active {
			continue
		}
		p, err := remotes[i].toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// FetchEmployee returns the profile for the given user id.
func (c *Client) FetchEmployee(ctx context.Context, userID string) (models.EmployeeProfile, error) {
	data, err := c.getJSON(ctx, "/api/user/"+userID)
	if err != nil {
		return models.EmployeeProfile{}, err
	}

	var remote remoteUser
	if err := json.Unmarshal(data, &remote); err != nil {
		return models.EmployeeProfile{}, errors.Wrap(errors.ErrDecodeFailed, "failed to decode user", err)
	}
	return remote.toModel()
}

// CreateOrder submits a completed visit and returns the remote-assigned
// order id. requestID is sent as X-Request-ID on every attempt for this
// order, so server-side duplicate detection can correlate retries.
func (c *Client) CreateOrder(ctx context.Context, visit models.VisitPayload, requestID string) (string, error) {
	body, err := json.Marshal(orderRequest{
		CourierID: visit.CourierID,
		StoreID:   visit.StoreID,
		Items:     visit.Items,
		Location:  visit.Location,
	})
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	data, err := c.do(req)
	if err != nil {
		return "", err
	}

	var created createdOrder
	if err := json.Unmarshal(data, &created); err != nil {
		return "", errors.Wrap(errors.ErrDecodeFailed, "failed to decode create order response", err)
	}
	return created.remoteID()
}

// UploadOrderPhoto uploads the shelf photo for an acknowledged order. The
// remote id must come from a successful CreateOrder; the upload endpoint
// has no notion of local ids.
func (c *Client) UploadOrderPhoto(ctx context.Context, remoteOrderID string, image []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "shelf.jpg")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/orders/img/"+remoteOrderID, &buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if _, err := c.do(req); err != nil {
		return errors.Wrap(errors.ErrAttachmentUploadFailed,
			"photo upload failed for order "+remoteOrderID, err)
	}
	return nil
}

// getJSON performs an authorized GET and returns the envelope's data.
func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	return c.do(req)
}

// do executes a request, injecting the bearer credential, and unwraps the
// response envelope. Non-2xx statuses and envelope-level errors both come
// back as REMOTE_REJECTED.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("token source: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(body) > 0 {
		// Tolerate empty bodies on success statuses; some endpoints
		// return nothing on 204.
		if err := json.Unmarshal(body, &env); err != nil && resp.StatusCode < 300 {
			return nil, errors.Wrap(errors.ErrDecodeFailed, "malformed response envelope", err)
		}
	}

	if resp.StatusCode >= 300 || env.Error {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, errors.New(errors.ErrRemoteRejected,
			fmt.Sprintf("%s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, message))
	}

	return env.Data, nil
}
