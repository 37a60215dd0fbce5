package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

func snapshotFixture() domain.ContextSnapshot {
	return domain.ContextSnapshot{
		Lead: domain.Lead{
			Name:    "Carlos",
			Phone:   "999888777",
			Carrier: "Claro",
		},
		Catalog: []domain.Plan{
			{Code: "PLAN39", Name: "Plan Ilimitado", PriceSoles: 39.90, DataGB: 60, Description: "Llamadas ilimitadas"},
		},
		FAQs: []domain.FAQ{
			{Question: "¿Pierdo mi número?", Answer: "No, conservas tu número."},
		},
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	p := NewPromptRenderer("sistema.md")
	p.readFile = func(string) ([]byte, error) {
		return []byte("Cliente:\n{{datos}}\nCatálogo:\n{{catalogo}}\nFAQ:\n{{faqs}}\nAhora: {{timestamp}}"), nil
	}

	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	out, err := p.Render(snapshotFixture(), now)
	require.NoError(t, err)

	assert.Contains(t, out, "Carlos")
	assert.Contains(t, out, "999888777")
	assert.Contains(t, out, "Plan Ilimitado (PLAN39): S/39.90, 60GB")
	assert.Contains(t, out, "¿Pierdo mi número?")
	assert.Contains(t, out, "2026-03-15 10:30")
	assert.NotContains(t, out, "{{")
}

func TestRenderReadsTemplateOnce(t *testing.T) {
	reads := 0
	p := NewPromptRenderer("sistema.md")
	p.readFile = func(string) ([]byte, error) {
		reads++
		return []byte("v1 {{timestamp}}"), nil
	}

	snap := snapshotFixture()
	for i := 0; i < 5; i++ {
		_, err := p.Render(snap, time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reads)
}

func TestRenderInvalidateForcesReload(t *testing.T) {
	reads := 0
	p := NewPromptRenderer("sistema.md")
	p.readFile = func(string) ([]byte, error) {
		reads++
		return []byte("version actual"), nil
	}

	_, err := p.Render(snapshotFixture(), time.Now())
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Render(snapshotFixture(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, reads)
}

func TestLoadFailsEagerlyOnMissingTemplate(t *testing.T) {
	p := NewPromptRenderer("no-existe.md")
	p.readFile = func(string) ([]byte, error) {
		return nil, errors.New("no such file")
	}

	err := p.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPromptTemplate)
}

func TestLoadPrimesTheCache(t *testing.T) {
	reads := 0
	p := NewPromptRenderer("sistema.md")
	p.readFile = func(string) ([]byte, error) {
		reads++
		return []byte("hola {{timestamp}}"), nil
	}

	require.NoError(t, p.Load())
	_, err := p.Render(snapshotFixture(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, reads)
}

func TestRenderMissingTemplate(t *testing.T) {
	p := NewPromptRenderer("no-existe.md")
	p.readFile = func(string) ([]byte, error) {
		return nil, errors.New("no such file")
	}

	_, err := p.Render(snapshotFixture(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPromptTemplate)
}

func TestRenderCachesReadFailure(t *testing.T) {
	reads := 0
	p := NewPromptRenderer("no-existe.md")
	p.readFile = func(string) ([]byte, error) {
		reads++
		return nil, errors.New("no such file")
	}

	_, err := p.Render(snapshotFixture(), time.Now())
	require.Error(t, err)
	_, err = p.Render(snapshotFixture(), time.Now())
	require.Error(t, err)
	assert.Equal(t, 1, reads)
}
