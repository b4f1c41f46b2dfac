package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

// BridgeState is the position of one quote bridge call in its handshake.
type BridgeState int

const (
	StateDisconnected BridgeState = iota
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateAwaitingMetric
	StateClosed
)

func (s BridgeState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateAwaitingMetric:
		return "awaiting_metric"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BridgeError reports the state a quote bridge call failed in.
// It matches domain.ErrMetricUnavailable as well as the underlying cause.
type BridgeError struct {
	State BridgeState
	Err   error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("quote bridge %s: %v", e.State, e.Err)
}

func (e *BridgeError) Unwrap() []error {
	return []error{domain.ErrMetricUnavailable, e.Err}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	Params  *struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

// QuoteBridge fetches the volatility index from Deribit over a fresh,
// single-use WebSocket session per call.
type QuoteBridge struct {
	url          string
	clientID     string
	clientSecret string
	timeout      time.Duration
	strictAuth   bool
	dialer       *websocket.Dialer
}

type BridgeOption func(*QuoteBridge)

func WithBridgeTimeout(d time.Duration) BridgeOption {
	return func(b *QuoteBridge) {
		b.timeout = d
	}
}

// WithStrictAuth makes the bridge check the auth response before subscribing.
// By default the auth response is read but its result is not inspected.
func WithStrictAuth(strict bool) BridgeOption {
	return func(b *QuoteBridge) {
		b.strictAuth = strict
	}
}

func WithDialer(d *websocket.Dialer) BridgeOption {
	return func(b *QuoteBridge) {
		b.dialer = d
	}
}

func NewQuoteBridge(url, clientID, clientSecret string, opts ...BridgeOption) *QuoteBridge {
	b := &QuoteBridge{
		url:          url,
		clientID:     clientID,
		clientSecret: clientSecret,
		timeout:      10 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.dialer == nil {
		b.dialer = &websocket.Dialer{HandshakeTimeout: b.timeout}
	}
	return b
}

// VolatilityChannel is the Deribit channel carrying the volatility index of symbol.
func VolatilityChannel(symbol string) string {
	return "deribit_volatility_index." + strings.ToLower(strings.TrimSpace(symbol)) + "_usd"
}

// Volatility is Fetch with failures folded into an unavailable metric.
func (b *QuoteBridge) Volatility(ctx context.Context, symbol string) domain.QuoteMetric {
	metric, err := b.Fetch(ctx, symbol)
	if err != nil {
		slog.Warn("volatility unavailable", "symbol", symbol, "error", err)
		return domain.QuoteMetric{Symbol: metric.Symbol, Channel: metric.Channel}
	}
	return metric
}

// Fetch runs connect, auth, subscribe and one notification read.
// A null volatility in the notification is returned as a metric without a value, not an error.
func (b *QuoteBridge) Fetch(ctx context.Context, symbol string) (domain.QuoteMetric, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.QuoteMetric{}, domain.ErrEmptySymbol
	}
	metric := domain.QuoteMetric{Symbol: symbol, Channel: VolatilityChannel(symbol)}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	s := &bridgeSession{bridge: b, channel: metric.Channel, state: StateDisconnected}
	vol, err := s.run(ctx)
	if err != nil {
		return metric, err
	}
	metric.Volatility = vol
	return metric, nil
}

type bridgeSession struct {
	bridge     *QuoteBridge
	channel    string
	conn       *websocket.Conn
	state      BridgeState
	subscribed bool
}

func (s *bridgeSession) run(ctx context.Context) (*float64, error) {
	s.state = StateConnecting
	conn, resp, err := s.bridge.dialer.DialContext(ctx, s.bridge.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	s.conn = conn
	defer s.close(ctx)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	s.state = StateAuthenticating
	if err := s.authenticate(); err != nil {
		return nil, s.fail(ctx, err)
	}

	s.state = StateSubscribing
	if err := s.subscribe(); err != nil {
		return nil, s.fail(ctx, err)
	}

	s.state = StateAwaitingMetric
	vol, err := s.awaitMetric()
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return vol, nil
}

func (s *bridgeSession) authenticate() error {
	err := s.conn.WriteJSON(rpcRequest{
		JSONRPC: "2.0",
		ID:      config.DeribitAuthRequestID,
		Method:  "public/auth",
		Params: map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     s.bridge.clientID,
			"client_secret": s.bridge.clientSecret,
		},
	})
	if err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	frame, err := s.read()
	if err != nil {
		return err
	}
	if !s.bridge.strictAuth {
		return nil
	}
	if frame.ID == nil || *frame.ID != config.DeribitAuthRequestID {
		return fmt.Errorf("%w: expected auth response", domain.ErrProtocolViolation)
	}
	if frame.Error != nil {
		return fmt.Errorf("auth rejected: %d %s", frame.Error.Code, frame.Error.Message)
	}
	if isNullJSON(frame.Result) {
		return fmt.Errorf("%w: empty auth result", domain.ErrProtocolViolation)
	}
	return nil
}

func (s *bridgeSession) subscribe() error {
	if err := s.conn.WriteJSON(s.channelRequest("public/subscribe")); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	s.subscribed = true

	frame, err := s.read()
	if err != nil {
		return err
	}
	if frame.ID == nil || *frame.ID != config.DeribitSubscribeRequestID {
		return fmt.Errorf("%w: expected subscribe response, got %s", domain.ErrProtocolViolation, frame.describe())
	}
	if frame.Error != nil {
		return fmt.Errorf("%w: subscribe rejected: %d %s", domain.ErrProtocolViolation, frame.Error.Code, frame.Error.Message)
	}
	return nil
}

func (s *bridgeSession) awaitMetric() (*float64, error) {
	frame, err := s.read()
	if err != nil {
		return nil, err
	}
	if frame.Method != "subscription" || frame.Params == nil {
		return nil, fmt.Errorf("%w: expected subscription notification, got %s", domain.ErrProtocolViolation, frame.describe())
	}
	if frame.Params.Channel != s.channel {
		return nil, fmt.Errorf("%w: notification for channel %q", domain.ErrProtocolViolation, frame.Params.Channel)
	}
	if len(frame.Params.Data) == 0 {
		return nil, fmt.Errorf("%w: notification without data", domain.ErrProtocolViolation)
	}
	if isNullJSON(frame.Params.Data) {
		return nil, nil
	}

	var data struct {
		Volatility *float64 `json:"volatility"`
	}
	if err := json.Unmarshal(frame.Params.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode notification data: %v", domain.ErrProtocolViolation, err)
	}
	return data.Volatility, nil
}

func (s *bridgeSession) read() (*rpcFrame, error) {
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	var frame rpcFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", domain.ErrProtocolViolation, err)
	}
	if frame.JSONRPC != "2.0" {
		return nil, fmt.Errorf("%w: not a JSON-RPC 2.0 frame", domain.ErrProtocolViolation)
	}
	return &frame, nil
}

func (s *bridgeSession) channelRequest(method string) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      config.DeribitSubscribeRequestID,
		Method:  method,
		Params:  map[string][]string{"channels": {s.channel}},
	}
}

// close unsubscribes best-effort and tears the socket down.
func (s *bridgeSession) close(ctx context.Context) {
	if s.subscribed && ctx.Err() == nil {
		_ = s.conn.WriteJSON(s.channelRequest("public/unsubscribe"))
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = s.conn.Close()
	s.state = StateClosed
}

func (s *bridgeSession) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return &BridgeError{State: s.state, Err: err}
}

func (f *rpcFrame) describe() string {
	switch {
	case f.Method != "":
		return "method " + f.Method
	case f.ID != nil:
		return fmt.Sprintf("response id %d", *f.ID)
	default:
		return "unidentified frame"
	}
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
