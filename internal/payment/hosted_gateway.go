package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookstore-be/internal/config"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

const sessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type hostedGateway struct {
	baseURL       string
	secretKey     string
	callbackToken string
	successURL    string
	cancelURL     string
	httpClient    *http.Client
}

// ----------------- Constructor -----------------

// NewHostedGateway talks to a Stripe-compatible checkout sessions API.
func NewHostedGateway(cfg *config.Config) Gateway {
	if cfg.PaymentSecretKey == "" {
		logger.L().Warn("payment secret key is empty")
	}

	return &hostedGateway{
		baseURL:       strings.TrimRight(cfg.PaymentAPIBase, "/"),
		secretKey:     cfg.PaymentSecretKey,
		callbackToken: cfg.PaymentCallbackToken,
		successURL:    cfg.PublicBaseURL + "/checkout/callback/success?session=" + sessionPlaceholder,
		cancelURL:     cfg.PublicBaseURL + "/checkout/callback/cancel?session=" + sessionPlaceholder,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sessionResponse struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (s sessionResponse) toSession() (*Session, error) {
	corr, err := ParseCorrelation(s.Metadata)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        SessionStatus(s.Status),
		PaymentStatus: PaymentState(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Correlation:   corr,
	}, nil
}

// ----------------- CreateSession -----------------

func (g *hostedGateway) CreateSession(ctx context.Context, in SessionRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "CreateSession"),
		zap.Uint("order_id", in.Correlation.OrderID),
	)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", g.successURL)
	form.Set("cancel_url", g.cancelURL)
	form.Set("client_reference_id", strconv.FormatUint(uint64(in.Correlation.OrderID), 10))
	for k, v := range in.Correlation.Metadata() {
		form.Set("metadata["+k+"]", v)
	}
	for i, l := range in.Lines {
		p := fmt.Sprintf("line_items[%d]", i)
		form.Set(p+"[price_data][currency]", in.Currency)
		form.Set(p+"[price_data][product_data][name]", l.Name)
		form.Set(p+"[price_data][unit_amount]", strconv.FormatInt(l.UnitAmount, 10))
		form.Set(p+"[quantity]", strconv.Itoa(l.Quantity))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("order-%d-%d", in.Correlation.OrderID, time.Now().UnixNano()))

	var res sessionResponse
	if err := g.do(req, &res); err != nil {
		log.Error("create session failed", zap.Error(err))
		return nil, err
	}

	log.Info("payment session created", zap.String("session_id", res.ID))
	return res.toSession()
}

// ----------------- GetSession -----------------

func (g *hostedGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "GetSession"),
		zap.String("session_id", sessionID),
	)

	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		log.Error("failed building request", zap.Error(err))
		return nil, err
	}

	var res sessionResponse
	if err := g.do(req, &res); err != nil {
		log.Warn("get session failed", zap.Error(err))
		return nil, err
	}

	return res.toSession()
}

// ----------------- ExpireSession -----------------

func (g *hostedGateway) ExpireSession(ctx context.Context, sessionID string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "ExpireSession"),
		zap.String("session_id", sessionID),
	)

	if sessionID == "" {
		return ErrSessionNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/expire", nil)
	if err != nil {
		log.Error("failed building request", zap.Error(err))
		return err
	}

	var res sessionResponse
	if err := g.do(req, &res); err != nil {
		log.Warn("expire session failed", zap.Error(err))
		return err
	}

	log.Info("payment session expired", zap.String("status", res.Status))
	return nil
}

func (g *hostedGateway) do(req *http.Request, out any) error {
	req.SetBasicAuth(g.secretKey, "")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrSessionNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, body)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	return nil
}

// ----------------- Verify Signature -----------------

func (g *hostedGateway) VerifySignature(r *http.Request) error {
	expected := g.callbackToken
	if expected == "" {
		return nil // skip in dev
	}

	sig := r.Header.Get("x-callback-token")
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
