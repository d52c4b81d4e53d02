package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/upstream"
)

type fakeChargeAPI struct {
	singleCalls int
	multiCalls  int
	quote       *models.PriceQuote
	err         error
	lastSingle  upstream.ChargeRequest
	lastMulti   upstream.MultiChargeRequest
}

func (f *fakeChargeAPI) CalculateCharge(_ context.Context, req upstream.ChargeRequest) (*models.PriceQuote, error) {
	f.singleCalls++
	f.lastSingle = req
	return f.quote, f.err
}

func (f *fakeChargeAPI) CalculateMultiDeliveryCharge(_ context.Context, req upstream.MultiChargeRequest) (*models.PriceQuote, error) {
	f.multiCalls++
	f.lastMulti = req
	return f.quote, f.err
}

var (
	ikeja = &models.Coord{Lat: 6.6018, Lon: 3.3515}
	lekki = &models.Coord{Lat: 6.4698, Lon: 3.5852}
	yaba  = &models.Coord{Lat: 6.5095, Lon: 3.3711}
)

func TestChargeGatesIncompleteInputs(t *testing.T) {
	api := &fakeChargeAPI{}
	c := NewClient(api)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ChargeInput
	}{
		{"missing pickup", ChargeInput{Dropoff: lekki, Vehicle: models.VehicleBike}},
		{"missing dropoff", ChargeInput{Pickup: ikeja, Vehicle: models.VehicleBike}},
		{"urgent without fee", ChargeInput{Pickup: ikeja, Dropoff: lekki, Vehicle: models.VehicleBike, Urgent: true}},
		{"urgent negative fee", ChargeInput{Pickup: ikeja, Dropoff: lekki, Vehicle: models.VehicleBike, Urgent: true, UrgencyFee: -100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Charge(ctx, tc.in)
			assert.ErrorIs(t, err, ErrNotReady)
		})
	}
	assert.Equal(t, 0, api.singleCalls)
}

func TestChargeCompleteInputsCallThrough(t *testing.T) {
	api := &fakeChargeAPI{quote: &models.PriceQuote{TotalAmount: 250000, DeliveryFee: 200000}}
	c := NewClient(api)

	q, err := c.Charge(context.Background(), ChargeInput{
		Pickup: ikeja, Dropoff: lekki,
		Vehicle: models.VehicleCar, Urgent: true, UrgencyFee: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250000), q.TotalAmount)
	assert.Equal(t, 1, api.singleCalls)
	assert.Equal(t, models.VehicleCar, api.lastSingle.Vehicle)
	assert.Equal(t, int64(50000), api.lastSingle.UrgencyFee)
}

func TestChargeNonUrgentZeroFeeAllowed(t *testing.T) {
	api := &fakeChargeAPI{quote: &models.PriceQuote{TotalAmount: 100}}
	c := NewClient(api)

	// Non-urgent with zero fee is fine; the gate applies to urgent only.
	_, err := c.Charge(context.Background(), ChargeInput{Pickup: ikeja, Dropoff: lekki, Vehicle: models.VehicleBike})
	require.NoError(t, err)
	assert.Equal(t, 1, api.singleCalls)
}

func TestChargePropagatesAPIErrors(t *testing.T) {
	wantErr := errors.New("upstream exploded")
	api := &fakeChargeAPI{err: wantErr}
	c := NewClient(api)

	_, err := c.Charge(context.Background(), ChargeInput{Pickup: ikeja, Dropoff: lekki, Vehicle: models.VehicleBike})
	assert.ErrorIs(t, err, wantErr)
}

func TestMultiChargeGates(t *testing.T) {
	api := &fakeChargeAPI{}
	c := NewClient(api)
	ctx := context.Background()

	_, err := c.MultiCharge(ctx, MultiChargeInput{Dropoffs: []*models.Coord{lekki}, Vehicle: models.VehicleBike})
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = c.MultiCharge(ctx, MultiChargeInput{Pickup: ikeja, Vehicle: models.VehicleBike})
	assert.ErrorIs(t, err, ErrNotReady)

	// One unresolved leg blocks the whole calculation.
	_, err = c.MultiCharge(ctx, MultiChargeInput{Pickup: ikeja, Dropoffs: []*models.Coord{lekki, nil}, Vehicle: models.VehicleBike})
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = c.MultiCharge(ctx, MultiChargeInput{Pickup: ikeja, Dropoffs: []*models.Coord{lekki}, Urgent: true, Vehicle: models.VehicleBike})
	assert.ErrorIs(t, err, ErrNotReady)

	assert.Equal(t, 0, api.multiCalls)
}

func TestMultiChargeCallThrough(t *testing.T) {
	api := &fakeChargeAPI{quote: &models.PriceQuote{TotalAmount: 480000}}
	c := NewClient(api)

	q, err := c.MultiCharge(context.Background(), MultiChargeInput{
		Pickup:   ikeja,
		Dropoffs: []*models.Coord{lekki, yaba},
		Vehicle:  models.VehicleVan,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(480000), q.TotalAmount)
	require.Len(t, api.lastMulti.Dropoffs, 2)
	assert.InDelta(t, yaba.Lat, api.lastMulti.Dropoffs[1].Lat, 1e-9)
}
