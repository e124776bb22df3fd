// Package calllog persists call outcomes and booked appointments to
// Postgres. The repository is optional: a nil pool disables persistence
// without touching call flow.
package calllog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vocero/platform/apperr"
	"vocero/platform/logger"
)

// CallRecord is one finished or failed outbound call attempt.
type CallRecord struct {
	UserID         string
	ProviderName   string
	ProviderPhone  string
	CallSID        string
	ConversationID string
	Outcome        string
	DurationSecs   int
	SummaryText    string
	Campaign       bool
}

// AppointmentRecord is a booking confirmed over the phone.
type AppointmentRecord struct {
	UserID        string
	ProviderName  string
	ProviderPhone string
	ServiceType   string
	Date          string
	StartTime     string
	DurationMins  int
	Address       string
	Notes         string
	CalendarLink  string
}

// Repository writes call history rows. Safe to use with a nil receiver.
type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewRepository wires the repository to a connection pool. Pass a nil pool
// to disable persistence.
func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	if pool == nil {
		return nil
	}
	return &Repository{pool: pool, log: log}
}

// RecordCall inserts one call outcome row.
func (r *Repository) RecordCall(ctx context.Context, rec CallRecord) error {
	if r == nil {
		return nil
	}
	const op = "calllog.RecordCall"
	_, err := r.pool.Exec(ctx, `
		INSERT INTO call_logs (
			user_id, provider_name, provider_phone, call_sid,
			conversation_id, outcome, duration_secs, summary_text,
			campaign, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.UserID, rec.ProviderName, rec.ProviderPhone, rec.CallSID,
		rec.ConversationID, rec.Outcome, rec.DurationSecs, rec.SummaryText,
		rec.Campaign, time.Now().UTC(),
	)
	if err != nil {
		r.log.DatabaseError(op, err)
		return apperr.Wrap(apperr.KindInternal, "failed to record call", err).WithOp(op)
	}
	return nil
}

// RecordAppointment inserts one booked appointment row.
func (r *Repository) RecordAppointment(ctx context.Context, rec AppointmentRecord) error {
	if r == nil {
		return nil
	}
	const op = "calllog.RecordAppointment"
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			user_id, provider_name, provider_phone, service_type,
			appointment_date, start_time, duration_mins, address,
			notes, calendar_link, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.UserID, rec.ProviderName, rec.ProviderPhone, rec.ServiceType,
		rec.Date, rec.StartTime, rec.DurationMins, rec.Address,
		rec.Notes, rec.CalendarLink, time.Now().UTC(),
	)
	if err != nil {
		r.log.DatabaseError(op, err)
		return apperr.Wrap(apperr.KindInternal, "failed to record appointment", err).WithOp(op)
	}
	return nil
}
