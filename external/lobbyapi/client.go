package lobbyapi

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	createPath  = "/api/custom/create"
	updatePath  = "/api/custom/update"
	destroyPath = "/api/custom/destroy"

	destroyedStatus = "Lobby destroyed"
)

var errLobbyTransient = crerr.New("lobby api transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the external lobby service. It implements lobby.Service.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid LOBBY_API_URL")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = cfg.Timeout
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     max(cfg.MaxRetries, 0),
		logger:         logger.Named("lobbyapi"),
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}, nil
}

type createPayload struct {
	MapURL          string   `json:"mapUrl"`
	TeamA           []string `json:"teamA"`
	TeamB           []string `json:"teamB"`
	Players         []string `json:"players"`
	MinReadyTotal   int      `json:"MinReadyTotal,omitempty"`
	MinReadyPerTeam int      `json:"MinReadyPerTeam,omitempty"`
}

type updatePayload struct {
	MissionURL string `json:"missionURL"`
}

type createEnvelope struct {
	Status struct {
		RoomID         roomID   `json:"roomId"`
		OfflineInvites []string `json:"offlineInvites"`
	} `json:"status"`
}

type statusEnvelope struct {
	Status string `json:"status"`
}

// roomID accepts the lobby id as a JSON number or string.
type roomID string

func (r *roomID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*r = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("decode room id: %w", err)
		}
		*r = roomID(strings.TrimSpace(unquoted))
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("decode room id %s: %w", raw, err)
	}
	*r = roomID(raw)
	return nil
}

func (c *Client) Create(ctx context.Context, req lobby.CreateRequest) (lobby.Handle, error) {
	payload := createPayload{
		MapURL:          req.MapRef,
		TeamA:           nonNil(req.TeamA),
		TeamB:           nonNil(req.TeamB),
		Players:         nonNil(req.Players),
		MinReadyTotal:   req.MinReadyTotal,
		MinReadyPerTeam: req.MinReadyPerTeam,
	}

	// Creating is not idempotent, so it is never retried.
	raw, err := c.post(ctx, createPath, payload, 0)
	if err != nil {
		return lobby.Handle{}, classify(lobby.ErrCreate, crerr.Wrap(err, "create lobby"))
	}

	var out createEnvelope
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return lobby.Handle{}, classify(lobby.ErrCreate, crerr.Wrap(err, "decode create lobby response"))
	}
	if out.Status.RoomID == "" {
		return lobby.Handle{}, classify(lobby.ErrCreate, crerr.Newf("create lobby response has no room id: %s", abbreviateBody(raw)))
	}

	c.logger.InfoContext(ctx, "lobby created",
		"lobby_id", string(out.Status.RoomID),
		"map", req.MapRef,
		"players", len(req.Players),
		"offline_invites", len(out.Status.OfflineInvites),
	)
	return lobby.Handle{
		LobbyID:        string(out.Status.RoomID),
		OfflineInvites: out.Status.OfflineInvites,
	}, nil
}

// Update moves the running lobby to mapRef. The service keeps one lobby at a
// time, so lobbyID is only used for logging.
func (c *Client) Update(ctx context.Context, lobbyID, mapRef string) error {
	if _, err := c.post(ctx, updatePath, updatePayload{MissionURL: mapRef}, c.maxRetries); err != nil {
		return classify(lobby.ErrUpdate, crerr.Wrapf(err, "update lobby %s", lobbyID))
	}
	c.logger.InfoContext(ctx, "lobby updated", "lobby_id", lobbyID, "map", mapRef)
	return nil
}

func (c *Client) Destroy(ctx context.Context, lobbyID string) error {
	raw, err := c.post(ctx, destroyPath, nil, c.maxRetries)
	if err != nil {
		return classify(lobby.ErrDestroy, crerr.Wrapf(err, "destroy lobby %s", lobbyID))
	}

	var out statusEnvelope
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return classify(lobby.ErrDestroy, crerr.Wrapf(err, "decode destroy lobby %s response", lobbyID))
	}
	if out.Status != destroyedStatus {
		return classify(lobby.ErrDestroy, crerr.Newf("destroy lobby %s: unexpected status %q", lobbyID, out.Status))
	}
	c.logger.InfoContext(ctx, "lobby destroyed", "lobby_id", lobbyID)
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, retries int) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "lobby api circuit breaker rejected request", "path", path, "state", c.breaker.State())
			return nil, crerr.Wrap(err, "lobby service is temporarily unavailable")
		}
	}

	var body []byte
	if payload != nil {
		encoded, err := sonic.Marshal(payload)
		if err != nil {
			c.recordCircuitResult(nil)
			return nil, crerr.Wrap(err, "marshal lobby payload")
		}
		body = encoded
	}

	fullURL := c.baseURL + path
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("lobbyapi.url", fullURL),
			attribute.String("lobbyapi.request_body", truncateForLog(string(body), 2048)),
		)
	}
	c.logger.DebugContext(ctx, "lobby api request", "path", path, "curl_preview", buildCurlPreview(fullURL, string(body)))

	raw, err := c.execute(ctx, fullURL, body, retries)
	c.recordCircuitResult(err)
	return raw, err
}

func (c *Client) execute(ctx context.Context, fullURL string, body []byte, retries int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return nil, crerr.Wrap(err, "build lobby request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errLobbyTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errLobbyTransient, readErr)
			case resp.StatusCode/100 == 2:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: lobby api status=%d body=%s", errLobbyTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, crerr.Newf("lobby api status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == retries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 500 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.WarnContext(ctx, "lobby api request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled {
		return
	}
	if err != nil && stderrors.Is(err, errLobbyTransient) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

// classify tags err with a lobby failure kind while keeping the transport cause
// reachable through errors.Is.
func classify(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return strings.TrimRight(candidate, "/"), nil
}

func buildCurlPreview(fullURL, body string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("curl -X POST ")
	_, _ = buf.WriteString(shellQuote(fullURL))
	_, _ = buf.WriteString(" -H ")
	_, _ = buf.WriteString(shellQuote("Content-Type: application/json"))
	if body != "" {
		_, _ = buf.WriteString(" -d ")
		_, _ = buf.WriteString(shellQuote(truncateForLog(body, 2048)))
	}
	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "'\"'\"'") + "'"
}

func truncateForLog(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	return value[:limit] + "...(truncated)"
}

func abbreviateBody(body []byte) string {
	return truncateForLog(strings.TrimSpace(string(body)), 240)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
