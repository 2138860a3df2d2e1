package adapters

import (
	"context"
	"fmt"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Flutterwave serves bill payments, virtual-account issuance, and
// deposits. Fees and the supported-item catalog are its own; the router
// resolves them per call.
type Flutterwave struct {
	baseURL   string
	secretKey string
	client    HTTPClient
	items     map[string]catalogItem
}

type catalogItem struct {
	ports.BillItem
	fee decimal.Decimal
}

// NewFlutterwave creates the adapter. Catalog and fees come from the
// provider's biller onboarding and are static per deployment.
func NewFlutterwave(baseURL, secretKey string, client HTTPClient) *Flutterwave {
	f := &Flutterwave{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    client,
		items:     make(map[string]catalogItem),
	}
	for _, it := range []catalogItem{
		{ports.BillItem{Code: "DSTV-NG", Name: "DStv Subscription", Category: "cable", Country: "NG"}, decimal.RequireFromString("100")},
		{ports.BillItem{Code: "EKEDC-PREPAID", Name: "Eko Electric Prepaid", Category: "power", Country: "NG"}, decimal.RequireFromString("70")},
		{ports.BillItem{Code: "MTN-AIRTIME", Name: "MTN Airtime", Category: "airtime", Country: "NG"}, decimal.RequireFromString("10")},
		{ports.BillItem{Code: "GOTV-NG", Name: "GOtv Subscription", Category: "cable", Country: "NG"}, decimal.RequireFromString("80")},
	} {
		f.items[it.Code] = it
	}
	return f
}

func (f *Flutterwave) Name() string { return "flutterwave" }

func (f *Flutterwave) Capabilities() []domain.Capability {
	return []domain.Capability{
		domain.CapabilityBillPayment,
		domain.CapabilityVirtualAccount,
		domain.CapabilityDeposit,
	}
}

// Fee returns this rail's fee for an item. Virtual-account issuance and
// deposits have no item code and carry no fee here.
func (f *Flutterwave) Fee(itemCode string, _ decimal.Decimal) (decimal.Decimal, bool) {
	if itemCode == "" {
		return decimal.Zero, true
	}
	it, ok := f.items[itemCode]
	if !ok {
		return decimal.Zero, false
	}
	return it.fee, true
}

func (f *Flutterwave) Items(country string) []ports.BillItem {
	out := make([]ports.BillItem, 0, len(f.items))
	for _, it := range f.items {
		if it.Country == country {
			out = append(out, it.BillItem)
		}
	}
	return out
}

type fwValidateResponse struct {
	Status string `json:"status"`
	Data   struct {
		Name string `json:"name"`
	} `json:"data"`
}

func (f *Flutterwave) Validate(ctx context.Context, itemCode, customerRef string) (*ports.CustomerValidation, error) {
	var resp fwValidateResponse
	url := fmt.Sprintf("%s/v3/bill-items/%s/validate?customer=%s", f.baseURL, itemCode, customerRef)
	if err := getJSON(ctx, f.client, url, f.secretKey, &resp); err != nil {
		return nil, err
	}
	return &ports.CustomerValidation{
		Valid:        resp.Status == "success",
		CustomerName: resp.Data.Name,
	}, nil
}

type fwExecuteRequest struct {
	Country   string `json:"country"`
	Customer  string `json:"customer"`
	Amount    string `json:"amount"`
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

type fwExecuteResponse struct {
	Status string `json:"status"`
	Data   struct {
		FlwRef        string            `json:"flw_ref"`
		AccountDetail map[string]string `json:"account_detail"`
	} `json:"data"`
}

func (f *Flutterwave) Execute(ctx context.Context, req ports.ProviderExecuteRequest) (*ports.ProviderResult, error) {
	var path string
	switch req.Capability {
	case domain.CapabilityBillPayment:
		path = "/v3/bills"
	case domain.CapabilityVirtualAccount:
		path = "/v3/virtual-account-numbers"
	case domain.CapabilityDeposit:
		path = "/v3/charges"
	default:
		return nil, fmt.Errorf("unsupported capability %s", req.Capability)
	}

	payload := fwExecuteRequest{
		Country:   "NG",
		Customer:  req.CustomerRef,
		Amount:    req.Amount.String(),
		Type:      req.ItemCode,
		Reference: req.IdempotencyKey,
	}
	var resp fwExecuteResponse
	if err := postJSON(ctx, f.client, f.baseURL+path, f.secretKey, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, apperror.ErrProviderDeclined(f.Name(), resp.Status)
	}

	return &ports.ProviderResult{
		ProviderRef:   resp.Data.FlwRef,
		Pending:       req.Capability != domain.CapabilityBillPayment,
		AccountDetail: resp.Data.AccountDetail,
	}, nil
}

func (f *Flutterwave) CheckHealth(ctx context.Context) error {
	return getJSON(ctx, f.client, f.baseURL+"/v3/bill-categories?limit=1", f.secretKey, nil)
}
