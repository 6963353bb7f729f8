package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ResultCodeSuccess    = "0"
	ResultCodeProcessing = "1016"

	// Daraja answers a query for an in-flight push with HTTP 500 and this code.
	errorCodeProcessing = "500.001.1001"

	transactionType = "CustomerPayBillOnline"
	countryCode     = "254"
	timestampLayout = "20060102150405"
)

// Daraja stamps requests in Nairobi time.
var eat = time.FixedZone("EAT", 3*60*60)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// Client is stateless: every operation fetches its own token and makes a single round trip.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc, now: time.Now}
}

type PushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
	CallbackURL      string // optional, overrides Config.CallbackURL
}

type stkPushBody struct {
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

type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Accepted reports whether the gateway actually sent the prompt to the phone.
func (r PushResponse) Accepted() bool { return string(r.ResponseCode) == ResultCodeSuccess }

type queryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type QueryResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

func (r QueryResult) Succeeded() bool  { return string(r.ResultCode) == ResultCodeSuccess }
func (r QueryResult) Processing() bool { return string(r.ResultCode) == ResultCodeProcessing }

// Code holds a gateway result code. Daraja sends them as strings or numbers depending on the endpoint.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(n.String())
	return nil
}

type errorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// GatewayError means the gateway was unreachable, answered non-2xx, or sent something unreadable.
type GatewayError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("mpesa %s: %v", e.Op, e.Err)
	case e.Code != "":
		return fmt.Sprintf("mpesa %s: http %d: %s %s", e.Op, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("mpesa %s: http %d", e.Op, e.StatusCode)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AccessToken exchanges the consumer key/secret for a bearer token. Never cached.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", gatewayStatusError("token", resp.StatusCode, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &GatewayError{Op: "token", StatusCode: resp.StatusCode, Err: err}
	}
	if out.AccessToken == "" {
		return "", &GatewayError{Op: "token", StatusCode: resp.StatusCode, Message: "empty access token"}
	}
	return out.AccessToken, nil
}

// STKPush asks the gateway to prompt the customer's phone. A non-"0" ResponseCode
// is returned as data, not as an error; the caller decides what to tell the user.
func (c *Client) STKPush(ctx context.Context, p PushRequest) (*PushResponse, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("mpesa stk push: amount must be positive, got %d", p.Amount)
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.Timestamp()
	phone := NormalizePhone(p.Phone)
	callback := p.CallbackURL
	if callback == "" {
		callback = c.cfg.CallbackURL
	}
	body := stkPushBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            p.Amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       callback,
		AccountReference:  p.AccountReference,
		TransactionDesc:   p.Description,
	}

	var out PushResponse
	status, raw, err := c.post(ctx, "stk push", "/mpesa/stkpush/v1/processrequest", token, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, gatewayStatusError("stk push", status, raw)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "stk push", StatusCode: status, Err: err}
	}
	return &out, nil
}

// QueryStatus asks the gateway how a push ended. Safe to call repeatedly.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	ts := c.Timestamp()
	body := queryBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	status, raw, err := c.post(ctx, "query", "/mpesa/stkpushquery/v1/query", token, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.ErrorCode == errorCodeProcessing {
			return &QueryResult{
				CheckoutRequestID: checkoutRequestID,
				ResultCode:        ResultCodeProcessing,
				ResultDesc:        eb.ErrorMessage,
			}, nil
		}
		return nil, gatewayStatusError("query", status, raw)
	}

	var out QueryResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "query", StatusCode: status, Err: err}
	}
	if out.ResultCode == "" {
		return nil, &GatewayError{Op: "query", StatusCode: status, Message: "missing ResultCode"}
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, op, path, token string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, raw, nil
}

func gatewayStatusError(op string, status int, body []byte) *GatewayError {
	ge := &GatewayError{Op: op, StatusCode: status}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		ge.Code, ge.Message = eb.ErrorCode, eb.ErrorMessage
	}
	return ge
}

// Timestamp is the current time in the gateway's YYYYMMDDHHMMSS format.
func (c *Client) Timestamp() string { return c.now().In(eat).Format(timestampLayout) }

func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// NormalizePhone turns 07XX.., +2547XX.., 7XX.. into 2547XX...
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, countryCode) {
		return digits
	}
	return countryCode + strings.TrimPrefix(digits, "0")
}
