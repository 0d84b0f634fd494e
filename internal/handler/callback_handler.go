package handler

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"

	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const callbackAck = "Callback received"

type callbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// Provider envelope: {"Body":{"stkCallback":{...}}}
type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        *int   `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type flatCallback struct {
	ResultCode        *int           `json:"result_code"`
	ResultDescription string         `json:"result_description"`
	CheckoutRequestID string         `json:"checkout_request_id"`
	MerchantRequestID string         `json:"merchant_request_id"`
	Metadata          []callbackItem `json:"metadata"`
}

type CallbackHandler struct {
	reconcile service.ReconciliationService
	token     string
}

// NewCallbackHandler serves the provider's payment callback. A non-empty
// token must be echoed back in the callback URL's ?token= parameter.
func NewCallbackHandler(reconcile service.ReconciliationService, token string) *CallbackHandler {
	return &CallbackHandler{reconcile: reconcile, token: token}
}

func (h *CallbackHandler) MpesaCallback(c *fiber.Ctx) error {
	log := logging.FromContext(c.UserContext())

	if h.token != "" && subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(h.token)) != 1 {
		log.Warn("callback rejected: bad token", zap.String("ip", c.IP()))
		return c.Status(401).JSON(fiber.Map{"error": "Invalid callback token"})
	}

	cb, envelope, ok := parseCallback(c.Body())
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Malformed callback payload", "kind": service.ErrValidation.Error()})
	}

	outcome, err := h.reconcile.HandleCallback(c.UserContext(), cb)
	if err != nil {
		// The provider redelivers on 5xx; handling is idempotent.
		return respondError(c, err)
	}
	log.Info("callback handled", zap.String("outcome", string(outcome)))

	if envelope {
		return c.JSON(fiber.Map{"ResultCode": 0, "ResultDesc": callbackAck})
	}
	return c.JSON(fiber.Map{"result_code": 0, "result_description": callbackAck})
}

// parseCallback accepts the provider envelope or the flat form and reports
// which one it saw.
func parseCallback(body []byte) (service.Callback, bool, bool) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Body != nil && env.Body.StkCallback != nil {
		stk := env.Body.StkCallback
		if stk.ResultCode == nil {
			return service.Callback{}, true, false
		}
		var items []callbackItem
		if stk.CallbackMetadata != nil {
			items = stk.CallbackMetadata.Item
		}
		return service.Callback{
			ResultCode:        *stk.ResultCode,
			ResultDesc:        stk.ResultDesc,
			MerchantRequestID: stk.MerchantRequestID,
			CheckoutRequestID: stk.CheckoutRequestID,
			Metadata:          metadataMap(items),
		}, true, true
	}

	var flat flatCallback
	if err := json.Unmarshal(body, &flat); err != nil || flat.ResultCode == nil {
		return service.Callback{}, false, false
	}
	return service.Callback{
		ResultCode:        *flat.ResultCode,
		ResultDesc:        flat.ResultDescription,
		MerchantRequestID: flat.MerchantRequestID,
		CheckoutRequestID: flat.CheckoutRequestID,
		Metadata:          metadataMap(flat.Metadata),
	}, false, true
}

// metadataMap flattens items to strings. Numbers keep their literal digits so
// phone numbers are not turned into floats.
func metadataMap(items []callbackItem) map[string]string {
	m := make(map[string]string, len(items))
	for _, it := range items {
		raw := bytes.TrimSpace(it.Value)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				m[it.Name] = s
				continue
			}
		}
		m[it.Name] = string(raw)
	}
	return m
}
