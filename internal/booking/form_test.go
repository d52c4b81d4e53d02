package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courier-booking/internal/models"
)

var (
	ikeja = &models.Coord{Lat: 6.6018, Lon: 3.3515}
	lekki = &models.Coord{Lat: 6.4698, Lon: 3.5852}
	yaba  = &models.Coord{Lat: 6.5095, Lon: 3.3711}
)

// fillPriced sets up a complete single-stop form holding a quote.
func fillPriced(t *testing.T) *Form {
	t.Helper()
	f := NewForm()
	f.SetPickup("Allen Avenue, Ikeja", ikeja)
	require.NoError(t, f.SetStop(0, "Admiralty Way, Lekki", lekki))
	f.SetSender(models.Contact{Name: "Ada", Phone: "+2348000000001"})
	require.NoError(t, f.SetRecipient(0, models.Contact{Name: "Bayo", Phone: "+2348000000002"}))

	f.mu.Lock()
	f.quote = &models.PriceQuote{TotalAmount: 250000}
	f.pricedKey = f.priceKeyLocked()
	f.mu.Unlock()
	return f
}

func TestQuoteClearedByCoordinateEdits(t *testing.T) {
	cases := []struct {
		name string
		edit func(f *Form)
	}{
		{"pickup change", func(f *Form) { f.SetPickup("Opebi Road, Ikeja", yaba) }},
		{"stop change", func(f *Form) { _ = f.SetStop(0, "Herbert Macaulay Way, Yaba", yaba) }},
		{"vehicle change", func(f *Form) { f.SetVehicle(models.VehicleVan) }},
		{"urgency toggle", func(f *Form) { f.SetUrgent(true) }},
		{"urgency fee change", func(f *Form) { f.SetUrgencyFee(50000) }},
		{"stop added", func(f *Form) { f.AddStop() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := fillPriced(t)
			require.NotNil(t, f.Quote())
			tc.edit(f)
			assert.Nil(t, f.Quote())
		})
	}
}

func TestQuoteSurvivesContactAndNoteEdits(t *testing.T) {
	f := fillPriced(t)

	f.SetSender(models.Contact{Name: "Chioma", Phone: "+2348000000003"})
	require.NoError(t, f.SetRecipient(0, models.Contact{Name: "Dare", Phone: "+2348000000004"}))
	f.SetNote("fragile, call on arrival")

	assert.NotNil(t, f.Quote())
}

func TestNoOpEditsKeepQuote(t *testing.T) {
	f := fillPriced(t)
	f.SetVehicle(models.VehicleBike) // already bike
	f.SetUrgent(false)               // already off
	f.SetUrgencyFee(0)               // already zero
	assert.NotNil(t, f.Quote())
}

func TestReadyToPrice(t *testing.T) {
	f := NewForm()
	assert.False(t, f.ReadyToPrice())

	f.SetPickup("Ikeja", ikeja)
	assert.False(t, f.ReadyToPrice(), "dropoff still unresolved")

	require.NoError(t, f.SetStop(0, "Lekki", lekki))
	assert.True(t, f.ReadyToPrice())

	// Address text without coordinates does not count as resolved.
	require.NoError(t, f.SetStop(0, "somewhere typed by hand", nil))
	assert.False(t, f.ReadyToPrice())
	require.NoError(t, f.SetStop(0, "Lekki", lekki))

	f.SetUrgent(true)
	assert.False(t, f.ReadyToPrice(), "urgent needs a positive fee")
	f.SetUrgencyFee(50000)
	assert.True(t, f.ReadyToPrice())
}

func TestReadyToSubmit(t *testing.T) {
	f := fillPriced(t)
	assert.True(t, f.ReadyToSubmit())

	// Coordinates without address text block submission.
	require.NoError(t, f.SetStop(0, "", lekki))
	assert.False(t, f.ReadyToSubmit())

	// Restoring the address also cleared the quote, so still not ready.
	require.NoError(t, f.SetStop(0, "Admiralty Way, Lekki", lekki))
	assert.False(t, f.ReadyToSubmit())
}

func TestCurrentLocationMutualExclusion(t *testing.T) {
	f := NewForm()
	f.AddStop()

	require.NoError(t, f.ClaimCurrentLocation(SlotPickup))
	assert.Equal(t, SlotPickup, f.CurrentLocationSlot())

	// Another slot cannot take the designation; the holder is unchanged.
	err := f.ClaimCurrentLocation(DeliverySlot(0))
	require.ErrorIs(t, err, ErrCurrentLocationTaken)
	assert.Equal(t, SlotPickup, f.CurrentLocationSlot())

	// Re-claiming the holding slot is idempotent.
	require.NoError(t, f.ClaimCurrentLocation(SlotPickup))

	f.ReleaseCurrentLocation(SlotPickup)
	assert.Equal(t, Slot(""), f.CurrentLocationSlot())
	require.NoError(t, f.ClaimCurrentLocation(DeliverySlot(1)))
}

func TestSetFromCurrentLocation(t *testing.T) {
	f := NewForm()
	require.NoError(t, f.SetFromCurrentLocation(SlotPickup, "Allen Avenue, Ikeja", *ikeja))

	snap := f.Snapshot()
	assert.Equal(t, "Allen Avenue, Ikeja", snap.PickupAddress)
	require.NotNil(t, snap.PickupCoord)
	assert.InDelta(t, ikeja.Lat, snap.PickupCoord.Lat, 1e-9)
	assert.Equal(t, SlotPickup, snap.CurrentLocSlot)

	err := f.SetFromCurrentLocation(DeliverySlot(0), "Lekki", *lekki)
	assert.ErrorIs(t, err, ErrCurrentLocationTaken)
	assert.Empty(t, f.Snapshot().Stops[0].Address)
}

func TestManualEditReleasesDesignation(t *testing.T) {
	f := NewForm()
	require.NoError(t, f.SetFromCurrentLocation(SlotPickup, "Ikeja", *ikeja))

	// Typing a different pickup address drops the live-position binding.
	f.SetPickup("Opebi Road, Ikeja", yaba)
	assert.Equal(t, Slot(""), f.CurrentLocationSlot())

	require.NoError(t, f.SetFromCurrentLocation(DeliverySlot(0), "Yaba", *yaba))
	require.NoError(t, f.SetStop(0, "elsewhere", nil))
	assert.Equal(t, Slot(""), f.CurrentLocationSlot())
}

func TestRemoveStopRehomesDesignation(t *testing.T) {
	f := NewForm()
	f.AddStop()
	f.AddStop()
	require.NoError(t, f.SetFromCurrentLocation(DeliverySlot(2), "Yaba", *yaba))

	// Removing an earlier stop shifts the designation down with its stop.
	require.NoError(t, f.RemoveStop(0))
	assert.Equal(t, DeliverySlot(1), f.CurrentLocationSlot())
	assert.Equal(t, "Yaba", f.Snapshot().Stops[1].Address)

	// Removing the designated stop releases the designation.
	require.NoError(t, f.RemoveStop(1))
	assert.Equal(t, Slot(""), f.CurrentLocationSlot())
}

func TestRemoveStopKeepsAtLeastOne(t *testing.T) {
	f := NewForm()
	assert.Error(t, f.RemoveStop(0))
	assert.Error(t, f.RemoveStop(5))
	assert.ErrorIs(t, f.SetStop(3, "x", nil), ErrNoSuchStop)
}

func TestClaimInvalidSlots(t *testing.T) {
	f := NewForm()
	assert.ErrorIs(t, f.ClaimCurrentLocation(DeliverySlot(4)), ErrNoSuchStop)
	assert.Error(t, f.ClaimCurrentLocation(Slot("bogus")))
}

func TestResetReturnsToInitialState(t *testing.T) {
	f := fillPriced(t)
	f.SetUrgent(true)
	f.SetUrgencyFee(50000)
	require.NoError(t, f.ClaimCurrentLocation(SlotPickup))
	f.AddStop()

	f.Reset()
	snap := f.Snapshot()
	assert.Empty(t, snap.PickupAddress)
	assert.Nil(t, snap.PickupCoord)
	assert.Len(t, snap.Stops, 1)
	assert.Equal(t, models.VehicleBike, snap.Vehicle)
	assert.False(t, snap.Urgent)
	assert.Zero(t, snap.UrgencyFee)
	assert.Equal(t, Slot(""), snap.CurrentLocSlot)
	assert.Nil(t, snap.Quote)
}

func TestSnapshotIsACopy(t *testing.T) {
	f := fillPriced(t)
	snap := f.Snapshot()
	snap.Stops[0].Address = "mutated"
	assert.Equal(t, "Admiralty Way, Lekki", f.Snapshot().Stops[0].Address)
}
