package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// StripeAPI creates hosted payment links.
type StripeAPI interface {
	// CreatePaymentLink creates a product, a one-time price and a payment
	// link for it, returning the link URL. Amount is in the currency's
	// smallest unit (cents).
	CreatePaymentLink(ctx context.Context, creds StripeCredentials, productName string, amount int64, currency string) (string, error)
}

// StripeClient calls the Stripe Products/Prices/Payment-Links APIs.
type StripeClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

const stripeDefaultBaseURL = "https://api.stripe.com"

func (c *StripeClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return stripeDefaultBaseURL
}

type stripeObject struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePaymentLink chains the three Stripe calls a hosted link needs.
func (c *StripeClient) CreatePaymentLink(ctx context.Context, creds StripeCredentials, productName string, amount int64, currency string) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + creds.SecretKey}

	product := url.Values{}
	product.Set("name", productName)
	var productResp stripeObject
	if err := postForm(ctx, c.HTTPClient, "stripe", c.baseURL()+"/v1/products", headers, product, &productResp); err != nil {
		return "", err
	}

	price := url.Values{}
	price.Set("product", productResp.ID)
	price.Set("unit_amount", fmt.Sprintf("%d", amount))
	price.Set("currency", currency)
	var priceResp stripeObject
	if err := postForm(ctx, c.HTTPClient, "stripe", c.baseURL()+"/v1/prices", headers, price, &priceResp); err != nil {
		return "", err
	}

	link := url.Values{}
	link.Set("line_items[0][price]", priceResp.ID)
	link.Set("line_items[0][quantity]", "1")
	var linkResp stripeObject
	if err := postForm(ctx, c.HTTPClient, "stripe", c.baseURL()+"/v1/payment_links", headers, link, &linkResp); err != nil {
		return "", err
	}
	return linkResp.URL, nil
}
