package models

import "time"

// Coord is a fully resolved geographic point. Absence is modelled as a nil
// *Coord so the booking flow never carries a half-set coordinate.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// VehicleType selects the vehicle class used for pricing.
type VehicleType string

const (
	VehicleBike VehicleType = "bike"
	VehicleCar  VehicleType = "car"
	VehicleVan  VehicleType = "van"
)

// LocationCandidate is one entry of a location search result. Coord is nil
// when the candidate only carries a place reference and still needs a
// details lookup before it can be accepted as a final selection.
type LocationCandidate struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	PlaceID  string `json:"place_id,omitempty"`
	Coord    *Coord `json:"coord,omitempty"`
}

// Resolved reports whether the candidate already carries coordinates.
func (c LocationCandidate) Resolved() bool { return c.Coord != nil }

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DeliveryStop is one drop-off leg of a booking.
type DeliveryStop struct {
	Address   string  `json:"address"`
	Coord     *Coord  `json:"coord,omitempty"`
	Recipient Contact `json:"recipient"`
}

// LegCharge is the fee breakdown for a single delivery leg.
type LegCharge struct {
	DeliveryFee int64   `json:"delivery_fee"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// PriceQuote is the fee breakdown returned by the pricing endpoints.
// Amounts are in minor currency units. Legs carries one entry per delivery
// leg when the booking has multiple drop-offs.
type PriceQuote struct {
	TotalAmount   int64       `json:"total_amount"`
	DeliveryFee   int64       `json:"delivery_fee"`
	ServiceCharge int64       `json:"service_charge"`
	DistanceKm    float64     `json:"distance_km"`
	DurationMin   float64     `json:"duration_min"`
	Legs          []LegCharge `json:"legs,omitempty"`
}

// Order is a created booking as acknowledged by the logistics platform.
type Order struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	PickupAddress string         `json:"pickup_address"`
	Pickup        Coord          `json:"pickup"`
	Stops         []DeliveryStop `json:"stops"`
	Sender        Contact        `json:"sender"`
	Vehicle       VehicleType    `json:"vehicle"`
	Urgent        bool           `json:"urgent"`
	UrgencyFee    int64          `json:"urgency_fee,omitempty"`
	Note          string         `json:"note,omitempty"`
	Amount        int64          `json:"amount"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OrderStatusEvent is the shape of order lifecycle updates flowing through
// the order-status topic and out to connected clients.
type OrderStatusEvent struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id,omitempty"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	At        time.Time `json:"at"`
}

// AddressBookEntry is a previously used sender or recipient contact held
// server-side. Role is either "sender" or "recipient".
type AddressBookEntry struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}
