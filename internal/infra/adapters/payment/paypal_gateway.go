package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*PayPalGateway)(nil)

// PayPalGateway reads and cancels PayPal billing subscriptions with the
// REST v1 API. Access tokens come from the client-credentials grant and are
// refreshed by the oauth2 transport.
type PayPalGateway struct {
	base   string
	client *http.Client
}

func NewPayPalGateway(clientID, clientSecret, baseURL string) (*PayPalGateway, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("paypal: invalid base url %q", baseURL)
	}
	base := strings.TrimRight(baseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	httpc := &http.Client{Timeout: 15 * time.Second}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpc)
	client := cc.Client(ctx)
	client.Timeout = 15 * time.Second

	return &PayPalGateway{base: base, client: client}, nil
}

func (p *PayPalGateway) Name() string { return "paypal" }

type paypalSubscription struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	Status     string `json:"status"`
	StartTime  string `json:"start_time"`
	Subscriber struct {
		EmailAddress string `json:"email_address"`
	} `json:"subscriber"`
}

func (p *PayPalGateway) GetSubscription(ctx context.Context, subscriptionID string) (*adapter.BillingSubscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	endpoint := p.base + "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal: get subscription: %w: %w", domain.ErrBillingUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, statusError("get subscription", resp)
	}

	var out paypalSubscription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("paypal: decode subscription: %w: %w", domain.ErrBillingUnavailable, err)
	}
	sub := &adapter.BillingSubscription{
		ID:         out.ID,
		PlanID:     out.PlanID,
		Status:     out.Status,
		Subscriber: out.Subscriber.EmailAddress,
	}
	if out.StartTime != "" {
		if ts, err := time.Parse(time.RFC3339, out.StartTime); err == nil {
			sub.StartTime = ts
		}
	}
	return sub, nil
}

func (p *PayPalGateway) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return domain.ErrInvalidArgument
	}
	if reason == "" {
		reason = "Customer requested cancellation"
	}
	body, _ := json.Marshal(map[string]string{"reason": reason})
	endpoint := p.base + "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID) + "/cancel"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: cancel subscription: %w: %w", domain.ErrBillingUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 300:
		return statusError("cancel subscription", resp)
	}
	return nil
}

// statusError reports any answer other than success or 404 as the provider
// being unavailable; the body is kept for the logs.
func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("paypal: %s: %w: http %d: %s", op, domain.ErrBillingUnavailable, resp.StatusCode, strings.TrimSpace(string(b)))
}
