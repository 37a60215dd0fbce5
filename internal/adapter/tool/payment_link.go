package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

// PaymentLinkTool generates a payment link through the payments API.
// It is a thin call into an external service; failures surface as
// error results, never as panics into the loop.
type PaymentLinkTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewPaymentLinkTool creates the tool against the payments API base URL.
func NewPaymentLinkTool(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *PaymentLinkTool {
	if client == nil {
		client = http.DefaultClient
	}
	return &PaymentLinkTool{baseURL: baseURL, apiKey: apiKey, client: client, logger: logger}
}

func (t *PaymentLinkTool) Name() string { return "generar_link_pago" }

func (t *PaymentLinkTool) Description() string {
	return "Genera un link de pago para el plan elegido por el cliente. Devuelve la URL y su fecha de expiración."
}

func (t *PaymentLinkTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"monto": {
					"type": "number",
					"minimum": 1,
					"description": "Monto a cobrar en soles."
				},
				"concepto": {
					"type": "string",
					"description": "Descripción del cobro, por ejemplo el nombre del plan."
				},
				"telefono": {
					"type": "string",
					"description": "Teléfono del cliente que recibirá el link."
				}
			},
			"required": ["monto", "concepto"]
		}`),
	}
}

type paymentLinkParams struct {
	Monto    float64 `json:"monto"`
	Concepto string  `json:"concepto"`
	Telefono string  `json:"telefono,omitempty"`
}

type paymentLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

func (t *PaymentLinkTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var p paymentLinkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid params: %v", err)}, nil
	}

	body, err := json.Marshal(map[string]any{
		"amount":      p.Monto,
		"currency":    "PEN",
		"description": p.Concepto,
		"phone":       p.Telefono,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/links", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payments api: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("payments api error %d: %s", httpResp.StatusCode, respBody),
		}, nil
	}

	var link paymentLinkResponse
	if err := json.Unmarshal(respBody, &link); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	t.logger.Info("payment link generated", "amount", p.Monto, "concept", p.Concepto)

	out, err := json.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &domain.ToolResult{Content: string(out)}, nil
}
