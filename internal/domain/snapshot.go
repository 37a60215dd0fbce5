package domain

// ContextSnapshot is the business data injected into the system prompt.
// It is owned and mutated by the CRUD layer outside this core; the
// orchestrator receives it as an immutable value per call.
type ContextSnapshot struct {
	Lead    Lead   `json:"lead"`
	Catalog []Plan `json:"catalog"`
	FAQs    []FAQ  `json:"faqs"`
}

// Lead is the contact record for the conversation.
type Lead struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Carrier      string `json:"carrier"`
	PlanInterest string `json:"plan_interest"`
	Stage        string `json:"stage"`
}

// Plan is one catalog entry offered during the sale.
type Plan struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	PriceSoles  float64 `json:"price_soles"`
	DataGB      int     `json:"data_gb"`
	Description string  `json:"description"`
}

// FAQ is a canned question/answer pair rendered into the prompt.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
