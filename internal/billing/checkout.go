package billing

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// CheckoutBuilder constructs hosted-checkout redirect URLs. The user's id
// and email ride along as correlation parameters so the provider's success
// callback can be matched back to the account; no payment instrument data
// ever touches this service.
type CheckoutBuilder struct {
	baseURL   string
	returnURL string
}

func NewCheckoutBuilder(baseURL, returnURL string) *CheckoutBuilder {
	return &CheckoutBuilder{baseURL: baseURL, returnURL: returnURL}
}

// URL builds the checkout redirect for a real plan. Custom plans have no
// checkout and are rejected.
func (b *CheckoutBuilder) URL(plan Plan, userID uuid.UUID, email string) (string, error) {
	if plan.Custom {
		return "", fmt.Errorf("plan %q has no hosted checkout", plan.ID)
	}

	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid checkout base URL: %w", err)
	}

	q := u.Query()
	q.Set("plan", plan.ID)
	q.Set("client_reference_id", userID.String())
	q.Set("prefilled_email", email)
	q.Set("return_url", b.returnURL)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
