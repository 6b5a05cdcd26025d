// Package webhook реализует HTTP-обработчик событий платёжного провайдера.
//
// Обработчик проверяет подпись Stripe, приводит поддерживаемые события
// к внутреннему виду и передает их сервису синхронизации прав доступа.
// Неподдерживаемые события подтверждаются без обработки, ошибка хранилища
// возвращает 500, чтобы провайдер повторил доставку.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	stripewebhook "github.com/stripe/stripe-go/v78/webhook"

	entitlement "github.com/fromelabs/chat-backend/internal/services/entitlement"

	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/metrics"
	"github.com/fromelabs/chat-backend/internal/models"
)

// maxBodyBytes ограничивает размер принимаемого тела webhook-запроса.
const maxBodyBytes = 65536

// Service описывает интерфейс сервиса синхронизации прав доступа.
type Service interface {
	Apply(ctx context.Context, event entitlement.Event) error
}

// Handler управляет HTTP-запросами от платёжного провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// ServeHTTP godoc
// @Summary Webhook платёжного провайдера
// @Description Принимает подписанные события Stripe и применяет их к планам и статусам пользователей.
// @Tags Billing
// @Accept  json
// @Success 200 "Событие принято"
// @Failure 400 "Некорректное тело или подпись"
// @Failure 500 "Ошибка применения события"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("Stripe-Signature")
	// Версию API события задает аккаунт Stripe, а не SDK, поэтому
	// проверяется только подпись.
	event, err := stripewebhook.ConstructEventWithOptions(body, signature, h.webhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Error("invalid webhook signature", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	log.Info("webhook event received",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)))

	internal, ok, err := mapEvent(event)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "bad_payload").Inc()
		log.Error("failed to parse event payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !ok {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.service.Apply(r.Context(), internal); err != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		log.Error("failed to apply event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

// mapEvent приводит событие Stripe к внутреннему виду. Второе значение
// false означает, что вид события не обрабатывается.
func mapEvent(event stripe.Event) (entitlement.Event, bool, error) {
	out := entitlement.Event{ID: event.ID}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return out, false, err
		}
		out.Kind = entitlement.KindCheckoutCompleted
		out.UserUID = session.Metadata["user_uid"]
		out.Plan = models.Plan(session.Metadata["plan"])
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
		return out, true, nil

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return out, false, err
		}
		if sub.Status == stripe.SubscriptionStatusActive {
			out.Kind = entitlement.KindSubscriptionActive
		} else {
			out.Kind = entitlement.KindSubscriptionStopped
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.SubscriptionID = sub.ID
		return out, true, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return out, false, err
		}
		out.Kind = entitlement.KindSubscriptionDeleted
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.SubscriptionID = sub.ID
		return out, true, nil

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return out, false, err
		}
		if event.Type == "invoice.payment_succeeded" {
			out.Kind = entitlement.KindPaymentSucceeded
		} else {
			out.Kind = entitlement.KindPaymentFailed
		}
		if invoice.Customer != nil {
			out.CustomerID = invoice.Customer.ID
		}
		return out, true, nil

	default:
		return out, false, nil
	}
}
