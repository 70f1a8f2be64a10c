package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	chmemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/channel/memory"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
	"github.com/valyala/fasthttp"
)

var errRelayTransient = crerr.New("relay transient failure")

type ClientConfig struct {
	BaseURL   string
	Token     string
	ChannelID string
	Timeout   time.Duration
	Logger    *logging.Logger
	// Hub receives reactions pushed to the ingestion endpoint. Observation and
	// current reactor lookups are served from it.
	Hub *chmemory.Hub
}

// Client is the announcement channel backed by the chat relay service. Outgoing
// calls go over HTTP; incoming reactions arrive through the hub.
type Client struct {
	http      *fasthttp.Client
	baseURL   string
	token     string
	channelID string
	timeout   time.Duration
	hub       *chmemory.Hub
	logger    *logging.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, crerr.Newf("invalid RELAY_BASE_URL %q", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, crerr.New("RELAY_CHANNEL_ID is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hub := cfg.Hub
	if hub == nil {
		hub = chmemory.NewHub()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Client{
		http: &fasthttp.Client{
			Name:                "scrim-scheduler",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL:   baseURL,
		token:     strings.TrimSpace(cfg.Token),
		channelID: strings.TrimSpace(cfg.ChannelID),
		timeout:   timeout,
		hub:       hub,
		logger:    logger.Named("relay"),
	}, nil
}

func (c *Client) Hub() *chmemory.Hub {
	return c.hub
}

type messagePayload struct {
	Title    string         `json:"title"`
	Body     string         `json:"body,omitempty"`
	Fields   []fieldPayload `json:"fields,omitempty"`
	Mentions []string       `json:"mentions,omitempty"`
}

type fieldPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messageResponse struct {
	Ref string `json:"ref"`
}

type eventPayload struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
}

type eventResponse struct {
	ID string `json:"id"`
}

type rolesResponse struct {
	Roles []string `json:"roles"`
}

func (c *Client) PostMessage(ctx context.Context, msg channel.Message) (string, error) {
	payload := messagePayload{Title: msg.Title, Body: msg.Body, Mentions: msg.Mentions}
	for _, f := range msg.Fields {
		payload.Fields = append(payload.Fields, fieldPayload{Name: f.Name, Value: f.Value})
	}

	var out messageResponse
	path := "/channels/" + url.PathEscape(c.channelID) + "/messages"
	if err := c.do(ctx, fasthttp.MethodPost, path, payload, &out); err != nil {
		return "", fmt.Errorf("%w: %w", channel.ErrUnavailable, crerr.Wrap(err, "post message"))
	}
	if out.Ref == "" {
		return "", fmt.Errorf("%w: relay returned no message ref", channel.ErrUnavailable)
	}
	c.hub.Track(out.Ref, msg)
	return out.Ref, nil
}

func (c *Client) AddReaction(ctx context.Context, messageRef, symbol string) error {
	path := "/channels/" + url.PathEscape(c.channelID) + "/messages/" + url.PathEscape(messageRef) + "/reactions/" + url.PathEscape(symbol)
	if err := c.do(ctx, fasthttp.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("%w: %w", channel.ErrUnavailable, crerr.Wrapf(err, "add reaction %s", symbol))
	}
	return nil
}

func (c *Client) ObserveReactions(ctx context.Context, messageRef string) (<-chan channel.Reaction, error) {
	return c.hub.Subscribe(ctx, messageRef), nil
}

func (c *Client) CurrentReactors(_ context.Context, messageRef, symbol string) ([]string, error) {
	return c.hub.Reactors(messageRef, symbol), nil
}

// CreateEvent schedules a guild event next to the channel.
func (c *Client) CreateEvent(ctx context.Context, event channel.CalendarEvent) (string, error) {
	var out eventResponse
	payload := eventPayload{
		Name:        event.Name,
		Description: event.Description,
		StartAt:     event.StartAt.UTC(),
		EndAt:       event.EndAt.UTC(),
	}
	if err := c.do(ctx, fasthttp.MethodPost, "/guild/events", payload, &out); err != nil {
		return "", crerr.Wrap(err, "create calendar event")
	}
	if out.ID == "" {
		return "", crerr.New("relay returned no event id")
	}
	return out.ID, nil
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.do(ctx, fasthttp.MethodDelete, "/guild/events/"+url.PathEscape(eventID), nil, nil); err != nil {
		return crerr.Wrapf(err, "delete calendar event %s", eventID)
	}
	return nil
}

// MemberRoles lists the role names of a channel member.
func (c *Client) MemberRoles(ctx context.Context, channelID string) ([]string, error) {
	var out rolesResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/guild/members/"+url.PathEscape(channelID)+"/roles", nil, &out); err != nil {
		return nil, crerr.Wrapf(err, "member roles %s", channelID)
	}
	return out.Roles, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		body, err := sonic.Marshal(payload)
		if err != nil {
			return crerr.Wrap(err, "marshal relay payload")
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.WarnContext(ctx, "relay request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", errRelayTransient, method, path, err)
	}

	status := resp.StatusCode()
	if status/100 != 2 {
		body := strings.TrimSpace(string(resp.Body()))
		if len(body) > 240 {
			body = body[:240] + "..."
		}
		return crerr.Newf("relay %s %s status=%d body=%s", method, path, status, body)
	}
	if target == nil || len(resp.Body()) == 0 {
		return nil
	}
	// The response buffer goes back to the pool; decoded strings must not alias it.
	raw := append([]byte(nil), resp.Body()...)
	if err := sonic.Unmarshal(raw, target); err != nil {
		return crerr.Wrap(err, "decode relay response")
	}
	return nil
}
