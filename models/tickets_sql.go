package models

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type sqlTicketRepo struct{ db *sqlx.DB }

func NewSQLTicketRepository(db *sqlx.DB) TicketRepository {
	return &sqlTicketRepo{db}
}

type ticketRow struct {
	ID          int64     `db:"id"`
	EventID     string    `db:"event_id"`
	UserID      int64     `db:"user_id"`
	Type        string    `db:"ticket_type"`
	Status      string    `db:"status"`
	OrderNumber string    `db:"order_number"`
	SeatSection string    `db:"seat_section"`
	SeatRow     string    `db:"seat_row"`
	SeatNumber  int       `db:"seat_number"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row ticketRow) toModel() Ticket {
	return Ticket{
		ID:          row.ID,
		EventID:     row.EventID,
		UserID:      row.UserID,
		Type:        row.Type,
		Status:      row.Status,
		OrderNumber: row.OrderNumber,
		Seat:        Seat{Section: row.SeatSection, Row: row.SeatRow, Number: row.SeatNumber},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

const ticketColumns = `id, event_id, user_id, ticket_type, status, order_number,
	seat_section, seat_row, seat_number, created_at, updated_at`

func (r *sqlTicketRepo) Create(ctx context.Context, t *Ticket, capacity int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint: errcheck

	// 同一場活動同一票種序列化，避免超賣
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, t.EventID+"|"+t.Type); err != nil {
		return err
	}

	var sold int
	if err := tx.GetContext(ctx, &sold,
		`SELECT COUNT(*) FROM tickets WHERE event_id=$1 AND ticket_type=$2 AND status <> $3`,
		t.EventID, t.Type, TicketCancelled); err != nil {
		return err
	}
	if sold >= capacity {
		return ErrSoldOut
	}

	if t.Status == "" {
		t.Status = TicketActive
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO tickets(event_id, user_id, ticket_type, status, order_number, seat_section, seat_row, seat_number)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		t.EventID, t.UserID, t.Type, t.Status, t.OrderNumber, t.Seat.Section, t.Seat.Row, t.Seat.Number,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	return tx.Commit()
}

func (r *sqlTicketRepo) GetByID(ctx context.Context, id int64) (Ticket, error) {
	var row ticketRow
	if err := r.db.GetContext(ctx, &row,
		`SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id); err != nil {
		return Ticket{}, translate(err)
	}
	return row.toModel(), nil
}

func (r *sqlTicketRepo) ListByEvents(ctx context.Context, eventIDs []string, since time.Time) ([]Ticket, error) {
	if len(eventIDs) == 0 {
		return []Ticket{}, nil
	}
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE event_id = ANY($1::uuid[]) AND created_at >= $2
		 ORDER BY created_at`, pq.Array(eventIDs), since); err != nil {
		return nil, err
	}
	return toTickets(rows), nil
}

func (r *sqlTicketRepo) ListByUser(ctx context.Context, userID int64) ([]Ticket, error) {
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id=$1 ORDER BY created_at`, userID); err != nil {
		return nil, err
	}
	return toTickets(rows), nil
}

func (r *sqlTicketRepo) UpdateStatus(ctx context.Context, id int64, status string, capacity int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint: errcheck

	var cur ticketRow
	if err := tx.GetContext(ctx, &cur,
		`SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id); err != nil {
		return translate(err)
	}

	if cur.Status == TicketCancelled && status != TicketCancelled {
		// 與 Create 共用同一把鎖
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1))`, cur.EventID+"|"+cur.Type); err != nil {
			return err
		}
		var sold int
		if err := tx.GetContext(ctx, &sold,
			`SELECT COUNT(*) FROM tickets WHERE event_id=$1 AND ticket_type=$2 AND status <> $3`,
			cur.EventID, cur.Type, TicketCancelled); err != nil {
			return err
		}
		if sold >= capacity {
			return ErrSoldOut
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status=$1, updated_at=now() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func toTickets(rows []ticketRow) []Ticket {
	out := make([]Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}
