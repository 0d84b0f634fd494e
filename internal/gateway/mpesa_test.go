package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	tokenCalls atomic.Int32
	pushCalls  atomic.Int32
	lastPush   pushRequest
	lastAuth   string

	pushStatus int
	pushBody   string
	delay      time.Duration
}

func (f *fakeProvider) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			f.tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			f.pushCalls.Add(1)
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
			f.lastAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastPush))
			if f.pushStatus != 0 {
				w.WriteHeader(f.pushStatus)
			}
			w.Write([]byte(f.pushBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(baseURL string, timeout time.Duration) *MpesaClient {
	c := NewMpesaClient(Options{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "pass",
		CallbackURL:    "https://pos.example.com/api/v1/transactions/mpesa-callback",
		Timeout:        timeout,
	}, nil, nil)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC) }
	return c
}

func TestMpesaClient_Initiate(t *testing.T) {
	fp := &fakeProvider{pushBody: `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success"}`}
	ts := httptest.NewServer(fp.handler(t))
	defer ts.Close()

	c := newTestClient(ts.URL, time.Second)
	resp, err := c.Initiate(context.Background(), InitiateRequest{
		Phone:       "0712 345 678",
		Amount:      decimal.RequireFromString("149.20"),
		Reference:   "TXN20240301ABCDEF012345",
		Description: "Payment for purchase",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)

	assert.Equal(t, "Bearer tok-1", fp.lastAuth)
	assert.Equal(t, "174379", fp.lastPush.BusinessShortCode)
	assert.Equal(t, "20240301123015", fp.lastPush.Timestamp, "timestamp is in EAT")
	assert.Equal(t, Password("174379", "pass", "20240301123015"), fp.lastPush.Password)
	assert.Equal(t, "CustomerPayBillOnline", fp.lastPush.TransactionType)
	assert.Equal(t, int64(150), fp.lastPush.Amount, "amount rounds up")
	assert.Equal(t, "254712345678", fp.lastPush.PhoneNumber)
	assert.Equal(t, "254712345678", fp.lastPush.PartyA)
	assert.Equal(t, "174379", fp.lastPush.PartyB)
	assert.Equal(t, "TXN20240301ABCDEF012345", fp.lastPush.AccountReference)

	_, err = c.Initiate(context.Background(), InitiateRequest{Phone: "254712345678", Amount: decimal.NewFromInt(10), Reference: "r2"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fp.tokenCalls.Load(), "token is cached")
	assert.Equal(t, int32(2), fp.pushCalls.Load())
}

func TestMpesaClient_InitiateErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "provider message",
			status:     http.StatusBadRequest,
			body:       `{"requestId":"r","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Bad Request - Invalid PhoneNumber",
		},
		{
			name:       "generic message",
			status:     http.StatusInternalServerError,
			body:       `oops`,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    genericFailure,
		},
		{
			name:       "rejected with 200",
			body:       `{"ResponseCode":"1","ResponseDescription":"Rejected"}`,
			wantStatus: http.StatusOK,
			wantMsg:    "Rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProvider{pushStatus: tt.status, pushBody: tt.body}
			ts := httptest.NewServer(fp.handler(t))
			defer ts.Close()

			_, err := newTestClient(ts.URL, time.Second).Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: decimal.NewFromInt(1), Reference: "r"})
			var ge *GatewayError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.wantStatus, ge.StatusCode)
			assert.Equal(t, tt.wantMsg, ge.Message)
			assert.Equal(t, int32(1), fp.pushCalls.Load(), "no retries")
		})
	}
}

func TestMpesaClient_Timeout(t *testing.T) {
	fp := &fakeProvider{delay: 200 * time.Millisecond, pushBody: `{"ResponseCode":"0"}`}
	ts := httptest.NewServer(fp.handler(t))
	defer ts.Close()

	_, err := newTestClient(ts.URL, 50*time.Millisecond).Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: decimal.NewFromInt(1), Reference: "r"})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 0, ge.StatusCode)
	assert.Equal(t, genericFailure, ge.Message)
	assert.Equal(t, "timeout", outcome(err))
}

func TestMpesaClient_TokenFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL, time.Second).Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: decimal.NewFromInt(1), Reference: "r"})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"0712345678":       "254712345678",
		"0712 345-678":     "254712345678",
		"254712345678":     "254712345678",
		"+254 712 345 678": "254712345678",
		"(0)712345678":     "254712345678",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}
