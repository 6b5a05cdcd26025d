package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// notificationsExchange имя exchange, через который проходят все
// биллинговые уведомления.
const notificationsExchange = "notifications"

// Notifier публикует уведомления в exchange с фиксированным ключом
// маршрутизации.
type Notifier struct {
	ch         *amqp.Channel
	routingKey string
}

// NewNotifier создает новый экземпляр Notifier.
func NewNotifier(ch *amqp.Channel, routingKey string) *Notifier {
	return &Notifier{ch: ch, routingKey: routingKey}
}

// Publish сериализует сообщение в JSON и публикует его с постоянным
// режимом доставки, чтобы уведомление пережило перезапуск брокера.
func (n *Notifier) Publish(message any) error {
	const op = "rabbitmq.Notifier.Publish"

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if err := n.ch.Publish(notificationsExchange, n.routingKey, false, false, pub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
