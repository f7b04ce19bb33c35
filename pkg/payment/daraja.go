package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// pendingSentinel is the Daraja error code meaning "request is still being
// processed". It is the only non-OK response that maps to a pending outcome;
// every other unrecognized shape is treated as inconclusive, not pending.
const pendingSentinel = "500.001.1001"

// tokenSafetyMargin is subtracted from expires_in so a token is never used
// right at its expiry boundary.
const tokenSafetyMargin = 30 * time.Second

// DarajaClient talks to the Safaricom Daraja API: OAuth token generation,
// STK push initiation and the STK push status query.
type DarajaClient struct {
	ConsumerKey    string
	ConsumerSecret string
	PassKey        string
	ShortCode      string
	BaseURL        string
	CallbackURL    string

	client *http.Client

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

func NewDarajaClient(consumerKey, consumerSecret, passKey, shortCode, baseURL, callbackURL string) *DarajaClient {
	if baseURL == "" {
		baseURL = "https://sandbox.safaricom.co.ke"
	}
	return &DarajaClient{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		PassKey:        passKey,
		ShortCode:      shortCode,
		BaseURL:        baseURL,
		CallbackURL:    callbackURL,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

type darajaAuthResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// getToken returns a bearer token, reusing the cached one until it nears
// expiry. The mutex makes the first caller past the deadline refresh while
// concurrent callers wait for that refresh instead of issuing their own.
func (d *DarajaClient) getToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cachedToken != "" && time.Now().Before(d.tokenExpiry) {
		return d.cachedToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(d.ConsumerKey, d.ConsumerSecret)
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var out darajaAuthResp
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	ttl := 3600 * time.Second
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	d.cachedToken = out.AccessToken
	d.tokenExpiry = time.Now().Add(ttl - tokenSafetyMargin)
	return d.cachedToken, nil
}

type stkPushPayload struct {
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

type darajaErrorResp struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// InitiateSTKPush validates the request, signs it and asks the gateway to
// push a PIN prompt to the customer's phone. Invalid amounts and phone
// numbers are rejected before any network call.
func (d *DarajaClient) InitiateSTKPush(ctx context.Context, req STKPushRequest) (*PushResult, error) {
	if req.Amount < 1 {
		return nil, ErrInvalidAmount
	}
	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	token, err := d.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("stk push auth: %w", err)
	}
	ts := Timestamp(time.Now())
	payload := stkPushPayload{
		BusinessShortCode: d.ShortCode,
		Password:          Password(d.ShortCode, d.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            d.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       d.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+token)
	log.Printf("[MPESA] POST %s/mpesa/stkpush/v1/processrequest amount=%d phone=%s callback=%s", d.BaseURL, req.Amount, phone, d.CallbackURL)
	resp, err := d.client.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[MPESA] stk push failed status=%d body=%s", resp.StatusCode, string(respBody))
		var gwErr darajaErrorResp
		_ = json.Unmarshal(respBody, &gwErr)
		return nil, &InitiationError{StatusCode: resp.StatusCode, Message: gwErr.ErrorMessage}
	}
	var out PushResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("stk push response: %w", err)
	}
	log.Printf("[MPESA] stk push accepted merchant_request_id=%s checkout_request_id=%s", out.MerchantRequestID, out.CheckoutRequestID)
	return &out, nil
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResp struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// QueryStatus performs one signed status query for a checkout request and
// maps the raw response into the domain outcome vocabulary. A non-nil error
// means the attempt was inconclusive: neither terminal nor known-pending.
func (d *DarajaClient) QueryStatus(ctx context.Context, checkoutRequestID string) (Outcome, error) {
	token, err := d.getToken(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("stk query auth: %w", err)
	}
	ts := Timestamp(time.Now())
	payload := stkQueryPayload{
		BusinessShortCode: d.ShortCode,
		Password:          Password(d.ShortCode, d.PassKey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/mpesa/stkpushquery/v1/query", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+token)
	resp, err := d.client.Do(apiReq)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	// The gateway reports "still processing" as an error response with a
	// dedicated code. Only that code means pending; other error codes stay
	// inconclusive so a changed sentinel surfaces as unknown, not pending.
	var gwErr darajaErrorResp
	if json.Unmarshal(respBody, &gwErr) == nil && gwErr.ErrorCode != "" {
		if gwErr.ErrorCode == pendingSentinel {
			return Outcome{Status: StatusPending, Code: gwErr.ErrorCode, Description: gwErr.ErrorMessage}, nil
		}
		return Outcome{}, fmt.Errorf("stk query error code %s: %s", gwErr.ErrorCode, gwErr.ErrorMessage)
	}
	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("stk query: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	var out stkQueryResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Outcome{}, fmt.Errorf("stk query response: %w", err)
	}
	if out.ResultCode == "" {
		return Outcome{}, fmt.Errorf("stk query: no result code in body %s", string(respBody))
	}
	return MapResultCode(out.ResultCode, out.ResultDesc), nil
}

// MapResultCode translates a gateway result code into a domain outcome.
// Known failure codes get specific, user-readable causes; any other non-zero
// code keeps the gateway's own description.
func MapResultCode(code, desc string) Outcome {
	switch code {
	case "0":
		return Outcome{Status: StatusSuccess, Code: code, Description: desc}
	case "1037":
		return Outcome{Status: StatusFailed, Code: code, Description: "Unable to reach the customer's phone. Ensure it is on and try again."}
	case "1032":
		return Outcome{Status: StatusFailed, Code: code, Description: "Transaction was cancelled by the user."}
	case "1":
		return Outcome{Status: StatusFailed, Code: code, Description: "Insufficient M-PESA balance."}
	default:
		return Outcome{Status: StatusFailed, Code: code, Description: desc}
	}
}
