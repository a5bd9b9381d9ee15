// mailer.go — отправка писем через SMTP (go-mail).
// Если хост не задан, Mailer выключен и SendEmail возвращает ErrMailDisabled.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"
)

// ErrMailDisabled — SMTP не настроен.
var ErrMailDisabled = errors.New("отправка почты отключена")

// MailerConfig — параметры SMTP.
type MailerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer — SMTP-клиент для уведомлений.
type Mailer struct {
	cfg    MailerConfig
	logger *slog.Logger
}

// NewMailer создаёт Mailer.
func NewMailer(cfg MailerConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "mailer")),
	}
}

// Enabled сообщает, настроен ли SMTP.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// SendEmail отправляет текстовое письмо одному адресату.
// STARTTLS используется, если сервер его предлагает.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if !m.Enabled() {
		return ErrMailDisabled
	}
	if strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("недопустимые символы в теме письма")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("некорректный адрес отправителя: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("некорректный адрес получателя: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("ошибка настройки SMTP-клиента: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма через %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}

	m.logger.Info("Письмо отправлено", slog.String("subject", subject))
	return nil
}

func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}
