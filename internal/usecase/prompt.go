package usecase

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

// PromptRenderer renders the versioned system-prompt template against
// the per-call business context. The template file is read at most once
// per process; editing it requires a restart or an explicit Invalidate.
type PromptRenderer struct {
	path     string
	readFile func(string) ([]byte, error) // injectable for tests

	mu     sync.Mutex
	loaded bool
	tpl    string
	err    error
}

// NewPromptRenderer creates a renderer over the template at path.
func NewPromptRenderer(path string) *PromptRenderer {
	return &PromptRenderer{path: path, readFile: os.ReadFile}
}

// template returns the cached template, loading it on first use.
// Concurrent first access converges on the same content; the lock
// avoids duplicate disk reads.
func (p *PromptRenderer) template() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		data, err := p.readFile(p.path)
		if err != nil {
			p.err = fmt.Errorf("%w: %s: %v", domain.ErrPromptTemplate, p.path, err)
		} else {
			p.tpl = string(data)
		}
		p.loaded = true
	}
	return p.tpl, p.err
}

// Load reads the template eagerly so a missing or unreadable file
// fails at startup instead of on the first conversation turn.
func (p *PromptRenderer) Load() error {
	_, err := p.template()
	return err
}

// Invalidate discards the cached template so the next Render re-reads
// the file. Intended for explicit cache-busting, not per-call use.
func (p *PromptRenderer) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.tpl = ""
	p.err = nil
}

// Render substitutes the template placeholders with the snapshot data
// and timestamp. Substitution is pure string replacement keyed by exact
// token match.
func (p *PromptRenderer) Render(snap domain.ContextSnapshot, now time.Time) (string, error) {
	tpl, err := p.template()
	if err != nil {
		return "", err
	}

	replacer := strings.NewReplacer(
		"{{datos}}", formatLead(snap.Lead),
		"{{catalogo}}", formatCatalog(snap.Catalog),
		"{{faqs}}", formatFAQs(snap.FAQs),
		"{{timestamp}}", now.Format("2006-01-02 15:04"),
	)
	return replacer.Replace(tpl), nil
}

func formatLead(lead domain.Lead) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Nombre: %s\n", lead.Name)
	fmt.Fprintf(&sb, "Teléfono: %s\n", lead.Phone)
	if lead.Carrier != "" {
		fmt.Fprintf(&sb, "Operador actual: %s\n", lead.Carrier)
	}
	if lead.PlanInterest != "" {
		fmt.Fprintf(&sb, "Plan de interés: %s\n", lead.PlanInterest)
	}
	if lead.Stage != "" {
		fmt.Fprintf(&sb, "Etapa: %s\n", lead.Stage)
	}
	return sb.String()
}

func formatCatalog(plans []domain.Plan) string {
	var sb strings.Builder
	for _, plan := range plans {
		fmt.Fprintf(&sb, "- %s (%s): S/%.2f, %dGB. %s\n",
			plan.Name, plan.Code, plan.PriceSoles, plan.DataGB, plan.Description)
	}
	return sb.String()
}

func formatFAQs(faqs []domain.FAQ) string {
	var sb strings.Builder
	for _, faq := range faqs {
		fmt.Fprintf(&sb, "P: %s\nR: %s\n", faq.Question, faq.Answer)
	}
	return sb.String()
}
