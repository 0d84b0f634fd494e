// Package gateway is the client for the mobile-money push API (M-Pesa STK push).
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-pos-engine/internal/metrics"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"

	// Tokens are refreshed this long before the provider says they expire.
	tokenSkew = 60 * time.Second

	genericFailure = "Failed to initiate M-Pesa payment"
)

// The provider stamps requests in East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

type Options struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

type InitiateRequest struct {
	Phone       string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// InitiateResponse is the provider acknowledgment of a push request.
type InitiateResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// GatewayError is returned for any failed push. StatusCode is 0 when no
// response was received.
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mpesa: %s (status %d)", e.Message, e.StatusCode)
	}
	return "mpesa: " + e.Message
}

func (e *GatewayError) Unwrap() error { return e.Err }

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type MpesaClient struct {
	opts    Options
	client  *http.Client
	metrics *metrics.Metrics
	log     *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewMpesaClient(opts Options, m *metrics.Metrics, log *zap.Logger) *MpesaClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MpesaClient{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		metrics: m,
		log:     log.Named("mpesa"),
		tracer:  otel.Tracer("go-pos-engine/gateway"),
		now:     time.Now,
	}
}

// Initiate sends a push prompt to the customer's phone. It never retries.
func (c *MpesaClient) Initiate(ctx context.Context, req InitiateRequest) (resp *InitiateResponse, err error) {
	ctx, span := c.tracer.Start(ctx, "mpesa.initiate", trace.WithAttributes(
		attribute.String("mpesa.reference", req.Reference),
	))
	start := time.Now()
	defer func() {
		c.metrics.GatewayDuration.Observe(time.Since(start).Seconds())
		c.metrics.GatewayRequests.WithLabelValues(outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(eat).Format(timestampLayout)
	phone := NormalizePhone(req.Phone)
	body := pushRequest{
		BusinessShortCode: c.opts.Shortcode,
		Password:          Password(c.opts.Shortcode, c.opts.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount.Ceil().IntPart(),
		PartyA:            phone,
		PartyB:            c.opts.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.opts.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+pushPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating push request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Message: genericFailure, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: httpResp.StatusCode, Message: genericFailure, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: httpResp.StatusCode, Message: providerMessage(raw)}
	}

	var out InitiateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{StatusCode: httpResp.StatusCode, Message: genericFailure, Err: err}
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		msg := out.ResponseDescription
		if msg == "" {
			msg = genericFailure
		}
		return nil, &GatewayError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	span.SetAttributes(attribute.String("mpesa.checkout_request_id", out.CheckoutRequestID))
	c.log.Info("push request accepted",
		zap.String("reference", req.Reference),
		zap.String("checkout_request_id", out.CheckoutRequestID),
	)
	return &out, nil
}

// accessToken returns the cached bearer token or exchanges the consumer
// credentials for a new one.
func (c *MpesaClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(c.opts.ConsumerKey, c.opts.ConsumerSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &GatewayError{Message: "failed to obtain access token", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GatewayError{StatusCode: resp.StatusCode, Message: "failed to obtain access token", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{StatusCode: resp.StatusCode, Message: "failed to obtain access token"}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", &GatewayError{StatusCode: resp.StatusCode, Message: "invalid access token response", Err: err}
	}

	ttl := time.Hour
	if secs, err := tr.ExpiresIn.Int64(); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl - tokenSkew)
	return c.token, nil
}

// NormalizePhone converts a local number (07XXXXXXXX) to 2547XXXXXXXX and
// strips every non-digit, including a leading "+".
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if strings.HasPrefix(digits, "0") {
		return "254" + digits[1:]
	}
	return digits
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

func providerMessage(raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.ErrorMessage != "" {
		return er.ErrorMessage
	}
	return genericFailure
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Err != nil && errors.Is(ge.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "error"
}
