package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ProviderSubscription is the provider's view of a user's subscription,
// as returned by its API.
type ProviderSubscription struct {
	Status           string     `json:"status"`
	ProductName      string     `json:"product_name"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
	TrialStart       *time.Time `json:"trial_start"`
	TrialEnd         *time.Time `json:"trial_end"`
	TrialUsed        bool       `json:"trial_used"`
}

// Client talks to the billing provider's subscription API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: client}
}

// FetchSubscription pulls the authoritative subscription state for a user.
// A 404 from the provider means the user has no subscription; that is
// reported as StatusNone, not as an error.
func (c *Client) FetchSubscription(ctx context.Context, userID uuid.UUID) (*ProviderSubscription, error) {
	var sub ProviderSubscription

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&sub).
		SetPathParam("userID", userID.String()).
		Get("/v1/subscriptions/{userID}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return &ProviderSubscription{Status: StatusNone}, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("billing provider returned %d", resp.StatusCode())
	}

	return &sub, nil
}
