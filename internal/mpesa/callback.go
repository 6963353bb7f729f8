package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type stkCallbackBody struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        Code   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
	Amount            float64
	Receipt           string
	Phone             string
}

func (r CallbackResult) Succeeded() bool { return r.ResultCode == ResultCodeSuccess }

// ParseSTKCallback reads the body the gateway posts to CallBackURL.
func ParseSTKCallback(payload []byte) (*CallbackResult, error) {
	var cb stkCallbackBody
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("parse stk callback: %w", err)
	}
	stk := cb.Body.StkCallback
	if stk.CheckoutRequestID == "" || stk.ResultCode == "" {
		return nil, fmt.Errorf("parse stk callback: missing CheckoutRequestID or ResultCode")
	}

	res := &CallbackResult{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        string(stk.ResultCode),
		ResultDesc:        stk.ResultDesc,
	}
	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				res.Amount = v
			}
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				res.Receipt = v
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case string:
				res.Phone = v
			case float64:
				res.Phone = strconv.FormatFloat(v, 'f', 0, 64)
			}
		}
	}
	return res, nil
}
