package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"strconv"

	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"
	"quantumpay-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SignatureVerifier checks provider webhook signatures. Satisfied by
// service.HMACSignatureService.
type SignatureVerifier interface {
	VerifySHA512(secretKey string, payload []byte, signature string) bool
}

// WebhookHandler is the intake surface for asynchronous provider
// confirmations. Each provider has its own signature scheme and payload
// shape; everything past this handler sees only the normalized event.
type WebhookHandler struct {
	reconSvc ports.ReconciliationService
	verifier SignatureVerifier
	secrets  map[string]string // provider name -> webhook secret
	log      zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconSvc ports.ReconciliationService, verifier SignatureVerifier, secrets map[string]string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconSvc: reconSvc,
		verifier: verifier,
		secrets:  secrets,
		log:      log,
	}
}

// HandleWebhook handles POST /webhooks/:provider.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")
	secret, known := h.secrets[provider]
	if !known {
		response.Error(c, apperror.ErrNotFound("Provider"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	if !h.verifySignature(c, provider, secret, body) {
		h.log.Warn().Str("provider", provider).Msg("webhook signature rejected")
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	event, err := normalizeEvent(provider, body)
	if err != nil {
		h.log.Warn().Err(err).Str("provider", provider).Msg("unparseable webhook payload")
		response.Error(c, apperror.Validation("unparseable webhook payload"))
		return
	}

	if err := h.reconSvc.HandleProviderWebhook(c.Request.Context(), event); err != nil {
		// RCN_001 carries HTTP 200: unknown references are acknowledged
		// so the provider stops retrying, and the payload stays logged.
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"received": true})
}

func (h *WebhookHandler) verifySignature(c *gin.Context, provider, secret string, body []byte) bool {
	switch provider {
	case "flutterwave":
		// Flutterwave sends the configured hash verbatim.
		header := c.GetHeader("verif-hash")
		return header != "" && subtle.ConstantTimeCompare([]byte(header), []byte(secret)) == 1
	case "paystack":
		return h.verifier.VerifySHA512(secret, body, c.GetHeader("x-paystack-signature"))
	default:
		return false
	}
}

type fwWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		TxRef             string          `json:"tx_ref"`
		FlwRef            string          `json:"flw_ref"`
		Status            string          `json:"status"`
		Amount            decimal.Decimal `json:"amount"`
		Currency          string          `json:"currency"`
		ProcessorResponse string          `json:"processor_response"`
	} `json:"data"`
}

type psWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference       string `json:"reference"`
		ID              int64  `json:"id"`
		Status          string `json:"status"`
		Amount          int64  `json:"amount"` // subunits
		Currency        string `json:"currency"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

// normalizeEvent translates a provider payload into the internal shape.
func normalizeEvent(provider string, body []byte) (ports.ProviderEvent, error) {
	switch provider {
	case "flutterwave":
		var p fwWebhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return ports.ProviderEvent{}, err
		}
		event := ports.ProviderEvent{
			Provider:    provider,
			TxRef:       p.Data.TxRef,
			ProviderRef: p.Data.FlwRef,
			Succeeded:   p.Data.Status == "successful",
			Amount:      p.Data.Amount,
			Currency:    p.Data.Currency,
		}
		if !event.Succeeded {
			event.FailureNote = p.Data.ProcessorResponse
		}
		return event, nil
	case "paystack":
		var p psWebhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return ports.ProviderEvent{}, err
		}
		event := ports.ProviderEvent{
			Provider:    provider,
			TxRef:       p.Data.Reference,
			ProviderRef: strconv.FormatInt(p.Data.ID, 10),
			Succeeded:   p.Data.Status == "success",
			Amount:      decimal.NewFromInt(p.Data.Amount).Div(decimal.NewFromInt(100)),
			Currency:    p.Data.Currency,
		}
		if !event.Succeeded {
			event.FailureNote = p.Data.GatewayResponse
		}
		return event, nil
	}
	return ports.ProviderEvent{}, apperror.ErrNotFound("Provider")
}
