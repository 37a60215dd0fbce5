package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

// CatalogSource supplies the current plan catalog. The CRUD layer owns
// the catalog; this tool only reads it.
type CatalogSource func() []domain.Plan

// CatalogTool looks up plans by code or name substring.
type CatalogTool struct {
	source CatalogSource
}

// NewCatalogTool creates the catalog lookup tool.
func NewCatalogTool(source CatalogSource) *CatalogTool {
	return &CatalogTool{source: source}
}

func (t *CatalogTool) Name() string { return "consultar_catalogo" }

func (t *CatalogTool) Description() string {
	return "Busca planes en el catálogo por código o nombre. Devuelve precio, datos incluidos y descripción."
}

func (t *CatalogTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"consulta": {
					"type": "string",
					"description": "Código o parte del nombre del plan a buscar. Vacío devuelve todo el catálogo."
				}
			}
		}`),
	}
}

type catalogParams struct {
	Consulta string `json:"consulta"`
}

func (t *CatalogTool) Execute(_ context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var p catalogParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid params: %v", err)}, nil
	}

	query := strings.ToLower(strings.TrimSpace(p.Consulta))
	var matches []domain.Plan
	for _, plan := range t.source() {
		if query == "" ||
			strings.EqualFold(plan.Code, query) ||
			strings.Contains(strings.ToLower(plan.Name), query) {
			matches = append(matches, plan)
		}
	}

	if len(matches) == 0 {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("no plans match %q", p.Consulta)}, nil
	}

	out, err := json.Marshal(matches)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &domain.ToolResult{Content: string(out)}, nil
}
