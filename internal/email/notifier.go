// Package email sends booking confirmation emails. The notifier subscribes
// to booking events and is wholly optional.
package email

import (
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"

	"vocero/internal/events"
	"vocero/platform/config"
	"vocero/platform/logger"
)

// Notifier emails a copy of each confirmed booking to a configured
// address. Safe to use with a nil receiver.
type Notifier struct {
	client *mail.Client
	from   string
	name   string
	to     string
	log    *logger.Logger
}

// NewNotifier builds the SMTP notifier. Returns nil without error when
// email is not configured.
func NewNotifier(cfg config.SMTPConfig, log *logger.Logger) (*Notifier, error) {
	if !cfg.IsEmailEnabled() {
		return nil, nil
	}
	opts := []mail.Option{
		mail.WithPort(cfg.GetSMTPPort()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.GetSMTPUsername() != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.GetSMTPUsername()),
			mail.WithPassword(cfg.GetSMTPPassword()),
		)
	}
	client, err := mail.NewClient(cfg.GetSMTPHost(), opts...)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		client: client,
		from:   cfg.GetEmailFromAddress(),
		name:   cfg.GetEmailFromName(),
		to:     cfg.GetNotifyEmailAddress(),
		log:    log,
	}, nil
}

// Subscribe registers the notifier on the event bus. No-op on a nil
// notifier.
func (n *Notifier) Subscribe(bus events.Bus) {
	if n == nil {
		return
	}
	bus.Subscribe(events.BookingConfirmed{}.EventName(), events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		booking, ok := ev.(events.BookingConfirmed)
		if !ok {
			return nil
		}
		return n.sendBooking(ctx, booking)
	}))
}

func (n *Notifier) sendBooking(ctx context.Context, booking events.BookingConfirmed) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(n.name, n.from); err != nil {
		return err
	}
	if err := msg.To(n.to); err != nil {
		return err
	}
	msg.Subject(fmt.Sprintf("Booking confirmed: %s", booking.ProviderName))

	body := fmt.Sprintf("Provider: %s\nUser: %s\nDate: %s %s\n",
		booking.ProviderName, booking.UserID, booking.Date, booking.Time)
	if booking.Address != "" {
		body += "Address: " + booking.Address + "\n"
	}
	if booking.Notes != "" {
		body += "Notes: " + booking.Notes + "\n"
	}
	if booking.CalendarLink != "" {
		body += "Calendar: " + booking.CalendarLink + "\n"
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.log.CollaboratorError("email", "send_booking", err)
		return err
	}
	return nil
}
