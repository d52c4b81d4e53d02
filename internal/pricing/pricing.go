// Package pricing wraps the platform's charge-calculation endpoints with
// the client-side readiness gate: incomplete inputs mean "not ready to
// price yet", never a failed call.
package pricing

import (
	"context"
	"errors"

	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/observability"
	"github.com/example/courier-booking/internal/upstream"
)

// ErrNotReady signals that the inputs are incomplete (missing coordinates,
// or urgent with no positive fee). Callers skip the calculation and leave
// the quote empty; this is not a failure.
var ErrNotReady = errors.New("pricing: inputs incomplete")

// ChargeAPI is the slice of the upstream client the pricer needs.
type ChargeAPI interface {
	CalculateCharge(ctx context.Context, req upstream.ChargeRequest) (*models.PriceQuote, error)
	CalculateMultiDeliveryCharge(ctx context.Context, req upstream.MultiChargeRequest) (*models.PriceQuote, error)
}

// ChargeInput prices a single pickup -> dropoff leg.
type ChargeInput struct {
	Pickup     *models.Coord
	Dropoff    *models.Coord
	Vehicle    models.VehicleType
	Urgent     bool
	UrgencyFee int64
}

// MultiChargeInput prices a pickup with one or more dropoff legs.
type MultiChargeInput struct {
	Pickup     *models.Coord
	Dropoffs   []*models.Coord
	Vehicle    models.VehicleType
	Urgent     bool
	UrgencyFee int64
}

type Client struct {
	api ChargeAPI
}

func NewClient(api ChargeAPI) *Client {
	return &Client{api: api}
}

// Charge calculates the fee for a single delivery. Returns ErrNotReady
// when pickup or dropoff coordinates are missing, or when the urgency flag
// is set without a positive fee.
func (c *Client) Charge(ctx context.Context, in ChargeInput) (*models.PriceQuote, error) {
	if in.Pickup == nil || in.Dropoff == nil {
		return nil, ErrNotReady
	}
	if in.Urgent && in.UrgencyFee <= 0 {
		return nil, ErrNotReady
	}
	q, err := c.api.CalculateCharge(ctx, upstream.ChargeRequest{
		Pickup:     *in.Pickup,
		Dropoff:    *in.Dropoff,
		Vehicle:    in.Vehicle,
		Urgent:     in.Urgent,
		UrgencyFee: in.UrgencyFee,
	})
	if err != nil {
		observability.PriceCalculationErrors.Inc()
		return nil, err
	}
	observability.PriceCalculationsTotal.Inc()
	return q, nil
}

// MultiCharge calculates fees for a multi-delivery booking. In addition to
// the single-delivery gates, it requires at least one dropoff leg and
// coordinates on every leg.
func (c *Client) MultiCharge(ctx context.Context, in MultiChargeInput) (*models.PriceQuote, error) {
	if in.Pickup == nil || len(in.Dropoffs) == 0 {
		return nil, ErrNotReady
	}
	if in.Urgent && in.UrgencyFee <= 0 {
		return nil, ErrNotReady
	}
	dropoffs := make([]models.Coord, 0, len(in.Dropoffs))
	for _, d := range in.Dropoffs {
		if d == nil {
			return nil, ErrNotReady
		}
		dropoffs = append(dropoffs, *d)
	}
	q, err := c.api.CalculateMultiDeliveryCharge(ctx, upstream.MultiChargeRequest{
		Pickup:     *in.Pickup,
		Dropoffs:   dropoffs,
		Vehicle:    in.Vehicle,
		Urgent:     in.Urgent,
		UrgencyFee: in.UrgencyFee,
	})
	if err != nil {
		observability.PriceCalculationErrors.Inc()
		return nil, err
	}
	observability.PriceCalculationsTotal.Inc()
	return q, nil
}
