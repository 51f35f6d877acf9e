// Package notifications sends transactional email for booking and payout
// lifecycle events. Delivery is best-effort: a failed send is logged and
// never fails the business operation that triggered it.
package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/mailer"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
)

type Service struct {
	mailer   mailer.Service
	from     string
	fromName string
	logger   *slog.Logger
}

func NewService(m mailer.Service, from, fromName string) *Service {
	return &Service{mailer: m, from: from, fromName: fromName, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

// OnBookingConfirmed emails the guest a booking confirmation. The send runs
// after the materializer commits conceptually; since we only read from the
// event, running inside the tx is harmless. Always returns nil.
func (s *Service) OnBookingConfirmed(ctx context.Context, _ *gorm.DB, ev bookings.BookingConfirmed) error {
	if ev.GuestEmail == "" {
		return nil
	}
	e := bookingConfirmationEmail(ev)
	e.From = s.from
	e.FromName = s.fromName
	if err := s.mailer.Send(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "booking confirmation email failed",
			"booking_id", ev.BookingID, "err", err)
	}
	return nil
}

// SendPayoutCompleted notifies a recipient that a transfer went out.
func (s *Service) SendPayoutCompleted(ctx context.Context, email, name string, amount int64, reference string) {
	if email == "" {
		return
	}
	e := payoutCompletedEmail(name, amount, reference)
	e.From = s.from
	e.FromName = s.fromName
	e.To = []string{email}
	if err := s.mailer.Send(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "payout email failed", "reference", reference, "err", err)
	}
}

func bookingConfirmationEmail(ev bookings.BookingConfirmed) mailer.Email {
	name := ev.GuestName
	if name == "" {
		name = "there"
	}
	subject := "Booking confirmed - RealTravo"
	text := fmt.Sprintf("Hi %s,\n\nYour booking (#%s) is confirmed. Total paid: KES %d.\n\nThank you for booking with RealTravo!",
		name, ev.BookingID, ev.TotalAmount)

	html := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Booking Confirmed</h2>
    <p>Hi ` + name + `,</p>
    <p>Your booking is confirmed.</p>
    <p><strong>Booking ID:</strong> #` + ev.BookingID + `</p>
    <p><strong>Total paid:</strong> KES ` + fmt.Sprintf("%d", ev.TotalAmount) + `</p>
    <p>Thank you for booking with RealTravo!</p>
    <p>The RealTravo Team</p>
  </body>
</html>
`
	return mailer.Email{
		To:       []string{ev.GuestEmail},
		Subject:  subject,
		TextBody: text,
		HTMLBody: html,
	}
}

func payoutCompletedEmail(name string, amount int64, reference string) mailer.Email {
	if name == "" {
		name = "there"
	}
	subject := "Payout sent - RealTravo"
	text := fmt.Sprintf("Hi %s,\n\nA payout of KES %d (ref %s) has been sent to your bank account.\n\nThe RealTravo Team",
		name, amount, reference)

	html := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Payout Sent</h2>
    <p>Hi ` + name + `,</p>
    <p>A payout of <strong>KES ` + fmt.Sprintf("%d", amount) + `</strong> (ref ` + reference + `) has been sent to your bank account.</p>
    <p>The RealTravo Team</p>
  </body>
</html>
`
	return mailer.Email{
		Subject:  subject,
		TextBody: text,
		HTMLBody: html,
	}
}
