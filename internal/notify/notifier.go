package notify

import "context"

// Notifier объединяет WebSocket-рассылку и почту.
type Notifier struct {
	hub    *Hub
	mailer *Mailer
}

// NewNotifier создаёт Notifier.
func NewNotifier(hub *Hub, mailer *Mailer) *Notifier {
	return &Notifier{hub: hub, mailer: mailer}
}

// Broadcast рассылает событие подписчикам канала.
func (n *Notifier) Broadcast(ctx context.Context, channel, event string, payload any) error {
	return n.hub.Broadcast(ctx, channel, event, payload)
}

// SendEmail отправляет письмо.
func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	return n.mailer.SendEmail(ctx, to, subject, body)
}

// EmailEnabled сообщает, настроена ли почта.
func (n *Notifier) EmailEnabled() bool {
	return n.mailer.Enabled()
}
