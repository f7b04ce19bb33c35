package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"quantumpay/internal/store"
	"quantumpay/pkg/payment"
)

// STKCallback is the asynchronous result Daraja posts once the customer acts
// on the PIN prompt (or the push expires gateway-side).
type STKCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string            `json:"MerchantRequestID"`
			CheckoutRequestID string            `json:"CheckoutRequestID"`
			ResultCode        int               `json:"ResultCode"`
			ResultDesc        string            `json:"ResultDesc"`
			CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type CallbackMetadata struct {
	Item []struct {
		Name  string `json:"Name"`
		Value any    `json:"Value"`
	} `json:"Item"`
}

type MpesaWebhookHandler struct {
	outcomes *store.OutcomeStore
}

func NewMpesaWebhookHandler(outcomes *store.OutcomeStore) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{outcomes: outcomes}
}

// Handle ingests the gateway callback. It always acknowledges with 200 and
// ResultCode 0, whatever happens internally: an error-coded response makes
// the gateway retry delivery, which we never want to trigger. Malformed
// bodies are logged as errors and still acknowledged.
func (h *MpesaWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[MPESA callback] read body error: %v", err)
		h.ack(c)
		return
	}
	log.Printf("[MPESA callback] raw body: %s", string(body))

	var cb STKCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		log.Printf("[MPESA callback] parse error: %v", err)
		h.ack(c)
		return
	}
	stk := cb.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		log.Printf("[MPESA callback] parse error: no checkout request id in payload")
		h.ack(c)
		return
	}

	var outcome payment.Outcome
	if stk.ResultCode == 0 {
		metadata := make(map[string]any)
		if stk.CallbackMetadata != nil {
			for _, item := range stk.CallbackMetadata.Item {
				metadata[item.Name] = item.Value
			}
		}
		outcome = payment.Outcome{
			Status:      payment.StatusSuccess,
			Code:        "0",
			Description: stk.ResultDesc,
			Metadata:    metadata,
		}
		log.Printf("[MPESA callback] checkout_request_id=%s success receipt=%v", stk.CheckoutRequestID, metadata["MpesaReceiptNumber"])
	} else {
		outcome = payment.MapResultCode(fmt.Sprintf("%d", stk.ResultCode), stk.ResultDesc)
		log.Printf("[MPESA callback] checkout_request_id=%s failed code=%d desc=%s", stk.CheckoutRequestID, stk.ResultCode, stk.ResultDesc)
	}

	if _, won := h.outcomes.Resolve(stk.CheckoutRequestID, outcome); !won {
		log.Printf("[MPESA callback] checkout_request_id=%s already resolved, keeping first outcome", stk.CheckoutRequestID)
	}
	h.ack(c)
}

func (h *MpesaWebhookHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Callback processed successfully"})
}
