package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrPaymentNotFound = errors.New("payment not found at provider")

// PaymentDetail is the provider's full view of a payment, fetched out of band
// after a webhook ping. The webhook body itself only carries the payment id.
type PaymentDetail struct {
	ID          string `json:"id"`
	OrderID     string `json:"external_reference"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"payment_method"`
}

type ProviderClient interface {
	GetPayment(ctx context.Context, paymentID string) (PaymentDetail, error)
}

// HTTPProvider looks payments up against the provider's REST API.
type HTTPProvider struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPProvider(baseURL, token string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) GetPayment(ctx context.Context, paymentID string) (PaymentDetail, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", p.BaseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PaymentDetail{}, err
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return PaymentDetail{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return PaymentDetail{}, ErrPaymentNotFound
	case resp.StatusCode != http.StatusOK:
		return PaymentDetail{}, fmt.Errorf("provider returned %d for payment %s", resp.StatusCode, paymentID)
	}

	var d PaymentDetail
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return PaymentDetail{}, fmt.Errorf("decode provider response: %w", err)
	}
	d.ID = paymentID
	return d, nil
}
