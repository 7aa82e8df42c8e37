package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/carpool/internal/booking"
	"github.com/example/carpool/internal/delivery"
	"github.com/example/carpool/internal/models"
)

// PostgresStore persists trips and deliveries in Postgres. Status changes
// run as optimistic UPDATE ... WHERE status = $n so a lost race surfaces
// as ErrConflict instead of silently skipping the lifecycle table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	var srcLat, srcLon, dstLat, dstLon *float64
	if t.SourceCoord != nil {
		srcLat, srcLon = &t.SourceCoord.Lat, &t.SourceCoord.Lon
	}
	if t.DestinationCoord != nil {
		dstLat, dstLon = &t.DestinationCoord.Lat, &t.DestinationCoord.Lon
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO trips(driver_id, driver_name, driver_rating, source, source_city,
			source_lat, source_lon, destination, dest_lat, dest_lon, departure_time,
			price_per_seat, available_seats, status, description, accepts_deliveries,
			max_delivery_weight, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id`,
		t.DriverID, t.DriverName, t.DriverRating, t.Source, t.SourceCity,
		srcLat, srcLon, t.Destination, dstLat, dstLon, t.DepartureTime,
		t.PricePerSeat, t.AvailableSeats, t.Status, t.Description, t.AcceptsDeliveries,
		t.MaxDeliveryWeight, t.CreatedAt,
	).Scan(&t.ID)
}

const tripColumns = `id, driver_id, driver_name, driver_rating, source, source_city,
	source_lat, source_lon, destination, dest_lat, dest_lon, departure_time,
	price_per_seat, available_seats, status, description, accepts_deliveries,
	max_delivery_weight, created_at`

func scanTrip(row interface{ Scan(...any) error }) (*models.Trip, error) {
	var t models.Trip
	var srcLat, srcLon, dstLat, dstLon *float64
	err := row.Scan(&t.ID, &t.DriverID, &t.DriverName, &t.DriverRating, &t.Source,
		&t.SourceCity, &srcLat, &srcLon, &t.Destination, &dstLat, &dstLon,
		&t.DepartureTime, &t.PricePerSeat, &t.AvailableSeats, &t.Status,
		&t.Description, &t.AcceptsDeliveries, &t.MaxDeliveryWeight, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if srcLat != nil && srcLon != nil {
		t.SourceCoord = &models.Coord{Lat: *srcLat, Lon: *srcLon}
	}
	if dstLat != nil && dstLon != nil {
		t.DestinationCoord = &models.Coord{Lat: *dstLat, Lon: *dstLon}
	}
	return &t, nil
}

func (p *PostgresStore) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	t, err := scanTrip(p.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	parts, err := p.participants(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Participants = parts
	return t, nil
}

func (p *PostgresStore) participants(ctx context.Context, tripID int64) ([]models.TripParticipant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, user_name, join_status, is_driver, seat_count, joined_at
		FROM trip_participants WHERE trip_id = $1 ORDER BY joined_at`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TripParticipant
	for rows.Next() {
		var tp models.TripParticipant
		var seats sql.NullInt64
		var joined sql.NullTime
		if err := rows.Scan(&tp.UserID, &tp.UserName, &tp.JoinStatus, &tp.IsDriver, &seats, &joined); err != nil {
			return nil, err
		}
		if seats.Valid {
			n := int(seats.Int64)
			tp.SeatCount = &n
		}
		if joined.Valid {
			t := joined.Time
			tp.JoinedAt = &t
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

func (p *PostgresStore) queryTrips(ctx context.Context, where string, args ...any) ([]*models.Trip, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListTrips(ctx context.Context, offset, limit int) ([]*models.Trip, int, error) {
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM trips`).Scan(&total); err != nil {
		return nil, 0, err
	}
	trips, err := p.queryTrips(ctx, `ORDER BY departure_time OFFSET $1 LIMIT $2`, offset, limit)
	return trips, total, err
}

func (p *PostgresStore) SearchTrips(ctx context.Context, source, destination string, day time.Time) ([]*models.Trip, error) {
	where := `WHERE status = 'Pending'
		AND ($1 = '' OR source ILIKE '%' || $1 || '%')
		AND ($2 = '' OR destination ILIKE '%' || $2 || '%')`
	args := []any{source, destination}
	if !day.IsZero() {
		where += ` AND departure_time::date = $3::date`
		args = append(args, day)
	}
	return p.queryTrips(ctx, where+` ORDER BY departure_time`, args...)
}

func (p *PostgresStore) TripsByDriver(ctx context.Context, driverID models.UserID) ([]*models.Trip, error) {
	return p.queryTrips(ctx, `WHERE driver_id = $1 ORDER BY departure_time`, driverID)
}

func (p *PostgresStore) TripsByParticipant(ctx context.Context, userID models.UserID) ([]*models.Trip, error) {
	return p.queryTrips(ctx, `WHERE id IN (
		SELECT trip_id FROM trip_participants WHERE user_id = $1 AND NOT is_driver
	) ORDER BY departure_time`, userID)
}

func (p *PostgresStore) UpdateTripStatus(ctx context.Context, id int64, from, to models.TripStatus, reason string) error {
	if !booking.CanTransitionTrip(from, to) {
		return ErrConflict
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE trips SET status = $1,
			description = CASE WHEN $2 <> '' THEN trim(description || E'\nCancelled: ' || $2) ELSE description END
		WHERE id = $3 AND status = $4`, to, reason, id, from)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrConflict)
}

func (p *PostgresStore) AddParticipant(ctx context.Context, tripID int64, tp models.TripParticipant) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seats := tp.Seats()
	res, err := tx.ExecContext(ctx, `
		UPDATE trips SET available_seats = available_seats - $1
		WHERE id = $2 AND available_seats >= $1`, seats, tripID)
	if err != nil {
		return err
	}
	if err := oneRowOr(res, ErrConflict); err != nil {
		return err
	}
	joined := time.Now()
	if tp.JoinedAt != nil {
		joined = *tp.JoinedAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trip_participants(trip_id, user_id, user_name, join_status, is_driver, seat_count, joined_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)`,
		tripID, tp.UserID, tp.UserName, tp.JoinStatus, tp.IsDriver, seats, joined); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) RemoveParticipant(ctx context.Context, tripID int64, userID models.UserID) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seats int
	err = tx.QueryRowContext(ctx, `
		DELETE FROM trip_participants
		WHERE trip_id = $1 AND user_id = $2 AND NOT is_driver
		RETURNING seat_count`, tripID, userID).Scan(&seats)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE trips SET available_seats = available_seats + $1 WHERE id = $2`, seats, tripID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) CreateDelivery(ctx context.Context, d *models.DeliveryRequest) error {
	if d.Status == "" {
		d.Status = models.DeliveryPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO delivery_requests(sender_id, sender_name, receiver_phone, source_location,
			dropoff_location, weight, price, item_description, status, window_start, window_end, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id`,
		d.SenderID, d.SenderName, d.ReceiverPhone, d.SourceLocation,
		d.DropoffLocation, d.Weight, d.Price, d.ItemDescription, d.Status,
		d.WindowStart, d.WindowEnd, d.CreatedAt).Scan(&d.ID)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO delivery_status_history(request_id, status, changed_at) VALUES($1,$2,$3)`,
		d.ID, d.Status, d.CreatedAt)
	return err
}

const deliveryColumns = `id, sender_id, sender_name, receiver_phone, source_location,
	dropoff_location, weight, price, item_description, status, trip_id, driver_name,
	window_start, window_end, created_at`

func scanDelivery(row interface{ Scan(...any) error }) (*models.DeliveryRequest, error) {
	var d models.DeliveryRequest
	err := row.Scan(&d.ID, &d.SenderID, &d.SenderName, &d.ReceiverPhone, &d.SourceLocation,
		&d.DropoffLocation, &d.Weight, &d.Price, &d.ItemDescription, &d.Status,
		&d.TripID, &d.DriverName, &d.WindowStart, &d.WindowEnd, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *PostgresStore) GetDelivery(ctx context.Context, id int64) (*models.DeliveryRequest, error) {
	d, err := scanDelivery(p.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM delivery_requests WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT status, changed_at, note FROM delivery_status_history
		WHERE request_id = $1 ORDER BY changed_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var h models.StatusChange
		if err := rows.Scan(&h.Status, &h.Timestamp, &h.Note); err != nil {
			return nil, err
		}
		d.History = append(d.History, h)
	}
	return d, rows.Err()
}

func (p *PostgresStore) queryDeliveries(ctx context.Context, where string, args ...any) ([]*models.DeliveryRequest, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM delivery_requests `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.DeliveryRequest
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeliveriesBySender(ctx context.Context, senderID models.UserID) ([]*models.DeliveryRequest, error) {
	return p.queryDeliveries(ctx, `WHERE sender_id = $1 ORDER BY id`, senderID)
}

func (p *PostgresStore) DeliveriesSelectedForDriver(ctx context.Context, driverID models.UserID) ([]*models.DeliveryRequest, error) {
	return p.queryDeliveries(ctx, `
		WHERE status = 'TripSelected'
		AND trip_id IN (SELECT id FROM trips WHERE driver_id = $1)
		ORDER BY id`, driverID)
}

func (p *PostgresStore) DeliveriesForDriver(ctx context.Context, driverID models.UserID) ([]*models.DeliveryRequest, error) {
	return p.queryDeliveries(ctx, `
		WHERE status IN ('Accepted','InTransit','Delivered')
		AND trip_id IN (SELECT id FROM trips WHERE driver_id = $1)
		ORDER BY id`, driverID)
}

func (p *PostgresStore) PendingDeliveries(ctx context.Context, tripID *int64) ([]*models.DeliveryRequest, error) {
	// tripID scoping happens in the matcher; storage returns all pending.
	return p.queryDeliveries(ctx, `WHERE status = 'Pending' ORDER BY id`)
}

func (p *PostgresStore) UpdateDeliveryStatus(ctx context.Context, id int64, from, to models.DeliveryStatus, note *string) error {
	if !delivery.CanTransition(from, to) {
		return ErrConflict
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE delivery_requests SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	if err := oneRowOr(res, ErrConflict); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_status_history(request_id, status, changed_at, note)
		VALUES($1,$2,$3,$4)`, id, to, time.Now(), note); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) AssignTrip(ctx context.Context, id int64, tripID int64, driverName string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE delivery_requests SET trip_id = $1,
			driver_name = CASE WHEN $2 <> '' THEN $2 ELSE driver_name END
		WHERE id = $3`, tripID, driverName, id)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrNotFound)
}

func (p *PostgresStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE delivery_requests SET status = 'Expired'
		WHERE status IN ('Pending','TripSelected') AND window_end IS NOT NULL AND window_end < $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func oneRowOr(res sql.Result, notOne error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notOne
	}
	return nil
}
