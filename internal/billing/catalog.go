// Package billing integrates the hosted billing provider: the plan catalog,
// checkout redirect construction, and synchronization of subscription state
// into the local store. The provider remains the source of truth for payment
// state; this package only mirrors it.
package billing

import "errors"

var ErrUnknownPlan = errors.New("unknown plan")

// Plan is one entry of the subscription catalog.
type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Interval   string `json:"interval"`
	// Custom plans have no hosted checkout; selecting one routes the user
	// to sales instead of the payment provider.
	Custom bool `json:"custom"`
}

var catalog = []Plan{
	{ID: "starter", Name: "Starter", PriceCents: 900, Interval: "month"},
	{ID: "pro", Name: "Pro", PriceCents: 2900, Interval: "month"},
	{ID: "business", Name: "Business", PriceCents: 9900, Interval: "month"},
	{ID: "custom", Name: "Enterprise", Custom: true},
}

// Catalog returns the selectable plans in display order.
func Catalog() []Plan {
	plans := make([]Plan, len(catalog))
	copy(plans, catalog)
	return plans
}

// PlanByID resolves a plan identifier against the catalog.
func PlanByID(id string) (Plan, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}
