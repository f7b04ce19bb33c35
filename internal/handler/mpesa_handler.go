package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quantumpay/internal/store"
	"quantumpay/pkg/payment"
)

type MpesaHandler struct {
	provider payment.Provider
	outcomes *store.OutcomeStore
	budget   payment.PollBudget
}

func NewMpesaHandler(provider payment.Provider, outcomes *store.OutcomeStore, budget payment.PollBudget) *MpesaHandler {
	return &MpesaHandler{
		provider: provider,
		outcomes: outcomes,
		budget:   budget,
	}
}

// Initiate starts an STK push: the customer gets a PIN prompt on their phone
// and the caller gets back the checkout request id to track it with.
func (h *MpesaHandler) Initiate(c *gin.Context) {
	var req struct {
		Amount           int64  `json:"amount"`
		PhoneNumber      string `json:"phone_number"`
		AccountReference string `json:"account_reference"`
		TransactionDesc  string `json:"transaction_desc"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and phone_number are required"})
		return
	}
	if req.Amount < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": payment.ErrInvalidAmount.Error()})
		return
	}
	// Validate here as well as in the client so bad numbers never reach the
	// gateway regardless of which layer the caller goes through.
	if _, err := payment.NormalizePhoneNumber(req.PhoneNumber); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AccountReference == "" {
		req.AccountReference = fmt.Sprintf("qp-%s", uuid.New().String()[:8])
	}
	if req.TransactionDesc == "" {
		req.TransactionDesc = "Payment"
	}

	result, err := h.provider.InitiateSTKPush(c.Request.Context(), payment.STKPushRequest{
		Amount:           req.Amount,
		PhoneNumber:      req.PhoneNumber,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if err != nil {
		log.Printf("[MPESA] initiate error: %v", err)
		var initErr *payment.InitiationError
		switch {
		case errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, payment.ErrInvalidPhoneNumber):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &initErr) && initErr.Message != "":
			c.JSON(http.StatusBadGateway, gin.H{"error": initErr.Message})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to initiate payment"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"merchant_request_id": result.MerchantRequestID,
		"checkout_request_id": result.CheckoutRequestID,
		"response_code":       result.ResponseCode,
		"customer_message":    result.CustomerMessage,
	})
}

// Status returns the current outcome snapshot for a checkout request. The
// webhook may already have resolved it; otherwise one gateway query is made.
func (h *MpesaHandler) Status(c *gin.Context) {
	id := c.Param("checkout_request_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkout request id is required"})
		return
	}
	if outcome, ok := h.outcomes.Get(id); ok {
		c.JSON(http.StatusOK, outcome)
		return
	}
	outcome, err := h.provider.QueryStatus(c.Request.Context(), id)
	if err != nil {
		log.Printf("[MPESA] status query checkout_request_id=%s inconclusive: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to check transaction status"})
		return
	}
	if outcome.Status == payment.StatusSuccess || outcome.Status == payment.StatusFailed {
		outcome, _ = h.outcomes.Resolve(id, outcome)
	}
	c.JSON(http.StatusOK, outcome)
}

// Wait blocks until the payment resolves or the poll budget runs out. The
// loop is tied to the request context, so a client that gives up and
// disconnects stops the polling with it.
func (h *MpesaHandler) Wait(c *gin.Context) {
	id := c.Param("checkout_request_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkout request id is required"})
		return
	}
	if outcome, ok := h.outcomes.Get(id); ok {
		c.JSON(http.StatusOK, outcome)
		return
	}
	outcome := payment.Poll(c.Request.Context(), h.provider, id, h.budget)
	if outcome.Status == payment.StatusSuccess || outcome.Status == payment.StatusFailed {
		// First writer wins; if the callback beat us, honor its outcome.
		outcome, _ = h.outcomes.Resolve(id, outcome)
	} else if resolved, ok := h.outcomes.Get(id); ok {
		// The callback may have landed while we were polling.
		outcome = resolved
	}
	if c.Request.Context().Err() != nil {
		return // client disconnected, nobody left to answer
	}
	c.JSON(http.StatusOK, outcome)
}
