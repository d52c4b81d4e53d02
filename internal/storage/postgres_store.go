package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/courier-booking/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveOrder(o *models.Order) error {
	stops, err := json.Marshal(o.Stops)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT INTO orders(id, user_id, pickup_address, pickup_lat, pickup_lon, stops, sender_name, sender_phone, vehicle, urgent, urgency_fee, note, amount, status, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.UserID, o.PickupAddress, o.Pickup.Lat, o.Pickup.Lon, stops,
		o.Sender.Name, o.Sender.Phone, string(o.Vehicle), o.Urgent, o.UrgencyFee,
		o.Note, o.Amount, o.Status, o.CreatedAt, o.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateStatus(orderID, status string) error {
	_, err := p.db.Exec(`UPDATE orders SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), orderID)
	return err
}

func (p *PostgresStore) ListByUser(userID string) ([]*models.Order, error) {
	rows, err := p.db.Query(`SELECT id, user_id, pickup_address, pickup_lat, pickup_lon, stops, sender_name, sender_phone, vehicle, urgent, urgency_fee, note, amount, status, created_at, updated_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		var o models.Order
		var stops []byte
		var vehicle string
		if err := rows.Scan(&o.ID, &o.UserID, &o.PickupAddress, &o.Pickup.Lat, &o.Pickup.Lon, &stops,
			&o.Sender.Name, &o.Sender.Phone, &vehicle, &o.Urgent, &o.UrgencyFee,
			&o.Note, &o.Amount, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Vehicle = models.VehicleType(vehicle)
		if err := json.Unmarshal(stops, &o.Stops); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
