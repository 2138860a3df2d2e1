package adapters

import (
	"context"
	"fmt"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Paystack is the second-priority bill and deposit rail. Its catalog
// overlaps Flutterwave's but carries different fees for the same logical
// items; the router re-resolves fees when failing over to it.
type Paystack struct {
	baseURL   string
	secretKey string
	client    HTTPClient
	items     map[string]catalogItem
}

// NewPaystack creates the adapter.
func NewPaystack(baseURL, secretKey string, client HTTPClient) *Paystack {
	p := &Paystack{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    client,
		items:     make(map[string]catalogItem),
	}
	for _, it := range []catalogItem{
		{ports.BillItem{Code: "DSTV-NG", Name: "DStv Subscription", Category: "cable", Country: "NG"}, decimal.RequireFromString("50")},
		{ports.BillItem{Code: "EKEDC-PREPAID", Name: "Eko Electric Prepaid", Category: "power", Country: "NG"}, decimal.RequireFromString("120")},
		{ports.BillItem{Code: "AIRTEL-AIRTIME", Name: "Airtel Airtime", Category: "airtime", Country: "NG"}, decimal.RequireFromString("15")},
	} {
		p.items[it.Code] = it
	}
	return p
}

func (p *Paystack) Name() string { return "paystack" }

func (p *Paystack) Capabilities() []domain.Capability {
	return []domain.Capability{
		domain.CapabilityBillPayment,
		domain.CapabilityDeposit,
	}
}

func (p *Paystack) Fee(itemCode string, _ decimal.Decimal) (decimal.Decimal, bool) {
	if itemCode == "" {
		return decimal.Zero, true
	}
	it, ok := p.items[itemCode]
	if !ok {
		return decimal.Zero, false
	}
	return it.fee, true
}

func (p *Paystack) Items(country string) []ports.BillItem {
	out := make([]ports.BillItem, 0, len(p.items))
	for _, it := range p.items {
		if it.Country == country {
			out = append(out, it.BillItem)
		}
	}
	return out
}

type psResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Reference    string `json:"reference"`
		CustomerName string `json:"customer_name"`
	} `json:"data"`
	Message string `json:"message"`
}

func (p *Paystack) Validate(ctx context.Context, itemCode, customerRef string) (*ports.CustomerValidation, error) {
	var resp psResponse
	url := fmt.Sprintf("%s/bill/validate?item_code=%s&customer=%s", p.baseURL, itemCode, customerRef)
	if err := getJSON(ctx, p.client, url, p.secretKey, &resp); err != nil {
		return nil, err
	}
	return &ports.CustomerValidation{
		Valid:        resp.Status,
		CustomerName: resp.Data.CustomerName,
	}, nil
}

type psExecuteRequest struct {
	ItemCode  string `json:"item_code"`
	Customer  string `json:"customer"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

func (p *Paystack) Execute(ctx context.Context, req ports.ProviderExecuteRequest) (*ports.ProviderResult, error) {
	var path string
	switch req.Capability {
	case domain.CapabilityBillPayment:
		path = "/bill/pay"
	case domain.CapabilityDeposit:
		path = "/transaction/initialize"
	default:
		return nil, fmt.Errorf("unsupported capability %s", req.Capability)
	}

	payload := psExecuteRequest{
		ItemCode:  req.ItemCode,
		Customer:  req.CustomerRef,
		Amount:    req.Amount.String(),
		Reference: req.IdempotencyKey,
	}
	var resp psResponse
	if err := postJSON(ctx, p.client, p.baseURL+path, p.secretKey, payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, apperror.ErrProviderDeclined(p.Name(), resp.Message)
	}

	return &ports.ProviderResult{
		ProviderRef: resp.Data.Reference,
		Pending:     req.Capability == domain.CapabilityDeposit,
	}, nil
}

func (p *Paystack) CheckHealth(ctx context.Context) error {
	return getJSON(ctx, p.client, p.baseURL+"/bank?perPage=1", p.secretKey, nil)
}
