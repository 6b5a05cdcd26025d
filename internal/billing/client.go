// Package billing содержит клиент платёжного провайдера Stripe:
// создание клиента, сессии оплаты подписки и сессии личного кабинета.
package billing

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/fromelabs/chat-backend/internal/config"
	"github.com/fromelabs/chat-backend/internal/models"
)

// Client — обертка над SDK Stripe с настройками из конфига.
type Client struct {
	sc  *client.API
	cfg config.Stripe
}

// New создает клиент Stripe с секретным ключом из конфига.
func New(cfg config.Stripe) *Client {
	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, nil)
	return &Client{sc: sc, cfg: cfg}
}

// PriceID возвращает идентификатор цены Stripe для платного плана.
func (c *Client) PriceID(plan models.Plan) (string, error) {
	switch plan {
	case models.PlanPro:
		return c.cfg.PriceIDPro, nil
	case models.PlanPremium:
		return c.cfg.PriceIDPremium, nil
	case models.PlanEnterprise:
		return c.cfg.PriceIDEnterprise, nil
	default:
		return "", fmt.Errorf("no price configured for plan %s", plan)
	}
}

// CreateCustomer регистрирует клиента у провайдера и возвращает его идентификатор.
func (c *Client) CreateCustomer(ctx context.Context, email, userUID string) (string, error) {
	const op = "billing.CreateCustomer"

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_uid", userUID)

	customer, err := c.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return customer.ID, nil
}

// CreateCheckoutSession создает сессию оплаты подписки и возвращает URL для редиректа.
// Метаданные несут uid пользователя и целевой план — по ним webhook-обработчик
// поймет, кого и на какой план переводить.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, userUID string, plan models.Plan) (string, error) {
	const op = "billing.CreateCheckoutSession"

	priceID, err := c.PriceID(plan)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if priceID == "" {
		return "", fmt.Errorf("%s: price id is not configured for plan %s", op, plan)
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_uid", userUID)
	params.AddMetadata("plan", string(plan))

	session, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return session.URL, nil
}

// CreatePortalSession создает сессию личного кабинета провайдера для управления подпиской.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	const op = "billing.CreatePortalSession"

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.cfg.PortalReturnURL),
	}
	params.Context = ctx

	session, err := c.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return session.URL, nil
}
