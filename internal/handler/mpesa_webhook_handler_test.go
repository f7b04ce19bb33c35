package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"quantumpay/internal/store"
	"quantumpay/pkg/payment"
)

func newWebhookRouter(t *testing.T) (*gin.Engine, *store.OutcomeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	outcomes := store.NewOutcomeStore(time.Hour)
	r := gin.New()
	r.POST("/api/v1/webhooks/mpesa", NewMpesaWebhookHandler(outcomes).Handle)
	return r, outcomes
}

func postCallback(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const successCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "mr_1",
			"CheckoutRequestID": "ws_1",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 100},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20231115103000},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}
	}
}`

func TestWebhook_SuccessCallback(t *testing.T) {
	t.Parallel()
	r, outcomes := newWebhookRouter(t)

	w := postCallback(t, r, successCallback)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Callback processed successfully"}`, w.Body.String())

	out, ok := outcomes.Get("ws_1")
	require.True(t, ok)
	require.Equal(t, payment.StatusSuccess, out.Status)
	require.Equal(t, float64(100), out.Metadata["Amount"])
	require.Equal(t, "NLJ7RT61SV", out.Metadata["MpesaReceiptNumber"])
}

func TestWebhook_FailedCallback(t *testing.T) {
	t.Parallel()
	r, outcomes := newWebhookRouter(t)

	w := postCallback(t, r, `{"Body":{"stkCallback":{"MerchantRequestID":"mr_1","CheckoutRequestID":"ws_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	out, ok := outcomes.Get("ws_2")
	require.True(t, ok)
	require.Equal(t, payment.StatusFailed, out.Status)
	require.Equal(t, "1032", out.Code)
	require.Contains(t, out.Description, "cancelled")
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	t.Parallel()
	var tests = []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"Body": not json`},
		{name: "empty body", body: ``},
		{name: "missing nested fields", body: `{"Body":{}}`},
		{name: "wrong shape entirely", body: `[1,2,3]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, outcomes := newWebhookRouter(t)
			w := postCallback(t, r, tt.body)
			require.Equal(t, http.StatusOK, w.Code, "the gateway must never see an error response")
			require.Contains(t, w.Body.String(), `"ResultCode":0`)
			_, ok := outcomes.Get("ws_1")
			require.False(t, ok)
		})
	}
}

func TestWebhook_DoesNotOverwriteResolvedOutcome(t *testing.T) {
	t.Parallel()
	r, outcomes := newWebhookRouter(t)
	first := payment.Outcome{Status: payment.StatusFailed, Code: "1", Description: "Insufficient M-PESA balance."}
	outcomes.Resolve("ws_1", first)

	w := postCallback(t, r, successCallback)
	require.Equal(t, http.StatusOK, w.Code)

	out, _ := outcomes.Get("ws_1")
	require.Equal(t, first, out, "first resolution stays authoritative")
}
