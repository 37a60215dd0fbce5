package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

// FollowUpTool schedules a follow-up for the lead through the CRM API.
type FollowUpTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewFollowUpTool creates the tool against the CRM base URL.
func NewFollowUpTool(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *FollowUpTool {
	if client == nil {
		client = http.DefaultClient
	}
	return &FollowUpTool{baseURL: baseURL, apiKey: apiKey, client: client, logger: logger}
}

func (t *FollowUpTool) Name() string { return "agendar_seguimiento" }

func (t *FollowUpTool) Description() string {
	return "Agenda una llamada o mensaje de seguimiento para el cliente en la fecha indicada."
}

func (t *FollowUpTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"telefono": {
					"type": "string",
					"description": "Teléfono del cliente."
				},
				"fecha": {
					"type": "string",
					"description": "Fecha y hora del seguimiento en formato RFC 3339."
				},
				"nota": {
					"type": "string",
					"description": "Motivo o contexto del seguimiento."
				}
			},
			"required": ["telefono", "fecha"]
		}`),
	}
}

type followUpParams struct {
	Telefono string `json:"telefono"`
	Fecha    string `json:"fecha"`
	Nota     string `json:"nota,omitempty"`
}

func (t *FollowUpTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var p followUpParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid params: %v", err)}, nil
	}

	if _, err := time.Parse(time.RFC3339, p.Fecha); err != nil {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid fecha %q: %v", p.Fecha, err)}, nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/followups", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("crm api: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("crm api error %d: %s", httpResp.StatusCode, respBody),
		}, nil
	}

	t.logger.Info("follow-up scheduled", "phone", p.Telefono, "when", p.Fecha)

	out, err := json.Marshal(map[string]string{"status": "agendado", "fecha": p.Fecha})
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &domain.ToolResult{Content: string(out)}, nil
}
