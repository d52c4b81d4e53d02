// Package booking holds the form state machine for a delivery booking:
// pickup and dropoff slots, urgency, the calculated quote, and the rules
// for when a booking may be priced and submitted.
package booking

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/courier-booking/internal/models"
)

var (
	// ErrCurrentLocationTaken rejects a current-location claim while
	// another slot holds the designation.
	ErrCurrentLocationTaken = errors.New("another address is already using your current location")

	// ErrNoSuchStop is returned for an out-of-range delivery index.
	ErrNoSuchStop = errors.New("no such delivery stop")
)

// Slot identifies the pickup field or one delivery field of the form.
type Slot string

const SlotPickup Slot = "pickup"

// DeliverySlot returns the slot tag for the i-th delivery field.
func DeliverySlot(i int) Slot { return Slot(fmt.Sprintf("delivery-%d", i)) }

// deliveryIndex parses a delivery slot tag; ok is false for SlotPickup or
// malformed tags.
func deliveryIndex(s Slot) (int, bool) {
	var i int
	if _, err := fmt.Sscanf(string(s), "delivery-%d", &i); err != nil {
		return 0, false
	}
	return i, true
}

// Form is the mutable state of one booking in progress. All methods are
// safe for concurrent use; the state machine semantics are:
//
//	empty -> pickup set -> priced -> submitting -> submitted
//
// with any coordinate- or urgency-affecting edit dropping back to the
// unpriced state by clearing the quote.
type Form struct {
	mu sync.Mutex

	pickupAddress string
	pickupCoord   *models.Coord
	stops         []models.DeliveryStop
	sender        models.Contact
	vehicle       models.VehicleType
	urgent        bool
	urgencyFee    int64
	note          string

	quote     *models.PriceQuote
	pricedKey string

	// currentLoc is the single source of truth for which slot, if any,
	// is bound to the device's live position.
	currentLoc Slot

	calcInFlight   bool
	submitInFlight bool
}

// NewForm returns a form with one empty delivery stop, matching the state
// a fresh booking screen starts in.
func NewForm() *Form {
	return &Form{
		stops:   make([]models.DeliveryStop, 1),
		vehicle: models.VehicleBike,
	}
}

// --- Field mutators ---

// SetPickup updates the pickup address and coordinates. Passing nil coords
// marks the pickup as unresolved. Any change invalidates the quote.
func (f *Form) SetPickup(address string, coord *models.Coord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pickupAddress = address
	f.pickupCoord = coord
	if f.currentLoc == SlotPickup {
		f.currentLoc = ""
	}
	f.clearQuoteLocked()
}

// SetStop updates the address and coordinates of the i-th delivery stop.
func (f *Form) SetStop(i int, address string, coord *models.Coord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.stops) {
		return ErrNoSuchStop
	}
	f.stops[i].Address = address
	f.stops[i].Coord = coord
	if f.currentLoc == DeliverySlot(i) {
		f.currentLoc = ""
	}
	f.clearQuoteLocked()
	return nil
}

// SetRecipient updates the contact of the i-th delivery stop. Contact
// edits do not affect pricing, so the quote survives.
func (f *Form) SetRecipient(i int, c models.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.stops) {
		return ErrNoSuchStop
	}
	f.stops[i].Recipient = c
	return nil
}

func (f *Form) SetSender(c models.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sender = c
}

func (f *Form) SetNote(note string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.note = note
}

// SetVehicle changes the vehicle class; the quote depends on it.
func (f *Form) SetVehicle(v models.VehicleType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vehicle == v {
		return
	}
	f.vehicle = v
	f.clearQuoteLocked()
}

// SetUrgent toggles the urgency flag.
func (f *Form) SetUrgent(urgent bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.urgent == urgent {
		return
	}
	f.urgent = urgent
	f.clearQuoteLocked()
}

// SetUrgencyFee sets the opted-in urgency fee in minor units.
func (f *Form) SetUrgencyFee(fee int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.urgencyFee == fee {
		return
	}
	f.urgencyFee = fee
	f.clearQuoteLocked()
}

// AddStop appends an empty delivery stop and returns its index.
func (f *Form) AddStop() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, models.DeliveryStop{})
	f.clearQuoteLocked()
	return len(f.stops) - 1
}

// RemoveStop deletes the i-th delivery stop. The last remaining stop
// cannot be removed; a booking always has at least one dropoff.
func (f *Form) RemoveStop(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.stops) {
		return ErrNoSuchStop
	}
	if len(f.stops) == 1 {
		return errors.New("booking needs at least one delivery stop")
	}
	f.stops = append(f.stops[:i], f.stops[i+1:]...)
	// Re-home or release the current-location designation: indexes above
	// the removed stop shift down by one.
	if idx, ok := deliveryIndex(f.currentLoc); ok {
		switch {
		case idx == i:
			f.currentLoc = ""
		case idx > i:
			f.currentLoc = DeliverySlot(idx - 1)
		}
	}
	f.clearQuoteLocked()
	return nil
}

// --- Current-location designation ---

// ClaimCurrentLocation binds slot to the device's live position. The claim
// is rejected, leaving the existing designation untouched, when a
// different slot already holds it.
func (f *Form) ClaimCurrentLocation(slot Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.validSlotLocked(slot); err != nil {
		return err
	}
	if f.currentLoc != "" && f.currentLoc != slot {
		return ErrCurrentLocationTaken
	}
	f.currentLoc = slot
	return nil
}

// SetFromCurrentLocation commits a resolved device position to slot,
// claiming the designation and filling the slot's text and coordinates in
// one step. Rejected like ClaimCurrentLocation when another slot holds
// the designation.
func (f *Form) SetFromCurrentLocation(slot Slot, address string, coord models.Coord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.validSlotLocked(slot); err != nil {
		return err
	}
	if f.currentLoc != "" && f.currentLoc != slot {
		return ErrCurrentLocationTaken
	}
	c := coord
	if slot == SlotPickup {
		f.pickupAddress = address
		f.pickupCoord = &c
	} else {
		i, _ := deliveryIndex(slot)
		f.stops[i].Address = address
		f.stops[i].Coord = &c
	}
	f.currentLoc = slot
	f.clearQuoteLocked()
	return nil
}

// ReleaseCurrentLocation drops the designation if slot holds it.
func (f *Form) ReleaseCurrentLocation(slot Slot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentLoc == slot {
		f.currentLoc = ""
	}
}

// CurrentLocationSlot returns the slot holding the designation, or "".
func (f *Form) CurrentLocationSlot() Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentLoc
}

// ValidateSlot reports whether slot names the pickup or an existing
// delivery stop.
func (f *Form) ValidateSlot(slot Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validSlotLocked(slot)
}

func (f *Form) validSlotLocked(slot Slot) error {
	if slot == SlotPickup {
		return nil
	}
	if i, ok := deliveryIndex(slot); ok {
		if i < 0 || i >= len(f.stops) {
			return ErrNoSuchStop
		}
		return nil
	}
	return fmt.Errorf("invalid slot %q", slot)
}

// --- Readiness ---

// ReadyToPrice reports whether a charge calculation may run: pickup and
// every dropoff resolved, and if urgent, a positive fee chosen.
func (f *Form) ReadyToPrice() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyToPriceLocked()
}

func (f *Form) readyToPriceLocked() bool {
	if f.pickupCoord == nil || len(f.stops) == 0 {
		return false
	}
	for _, s := range f.stops {
		if s.Coord == nil {
			return false
		}
	}
	if f.urgent && f.urgencyFee <= 0 {
		return false
	}
	return true
}

// ReadyToSubmit reports whether the booking can be placed: every slot has
// both text and coordinates, a quote is held, and nothing is in flight.
func (f *Form) ReadyToSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyToSubmitLocked()
}

func (f *Form) readyToSubmitLocked() bool {
	if !f.readyToPriceLocked() || f.quote == nil {
		return false
	}
	if f.calcInFlight || f.submitInFlight {
		return false
	}
	if strings.TrimSpace(f.pickupAddress) == "" {
		return false
	}
	for _, s := range f.stops {
		if strings.TrimSpace(s.Address) == "" {
			return false
		}
	}
	return true
}

// Quote returns the held quote, or nil when the booking is unpriced.
func (f *Form) Quote() *models.PriceQuote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quote
}

func (f *Form) clearQuoteLocked() {
	f.quote = nil
	f.pricedKey = ""
}

// priceKeyLocked fingerprints every input the quote depends on. A quote is
// valid only while the fingerprint it was computed from still matches.
func (f *Form) priceKeyLocked() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v|%s|%t|%d", f.pickupCoord, f.vehicle, f.urgent, f.urgencyFee)
	for _, s := range f.stops {
		fmt.Fprintf(&b, "|%v", s.Coord)
	}
	return b.String()
}

// Reset returns the form to its initial empty state. Called after a
// successful submission.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pickupAddress = ""
	f.pickupCoord = nil
	f.stops = make([]models.DeliveryStop, 1)
	f.sender = models.Contact{}
	f.vehicle = models.VehicleBike
	f.urgent = false
	f.urgencyFee = 0
	f.note = ""
	f.currentLoc = ""
	f.clearQuoteLocked()
}

// Snapshot is a read-only copy of the form for rendering.
type Snapshot struct {
	PickupAddress  string                `json:"pickup_address"`
	PickupCoord    *models.Coord         `json:"pickup_coord,omitempty"`
	Stops          []models.DeliveryStop `json:"stops"`
	Sender         models.Contact        `json:"sender"`
	Vehicle        models.VehicleType    `json:"vehicle"`
	Urgent         bool                  `json:"urgent"`
	UrgencyFee     int64                 `json:"urgency_fee"`
	Note           string                `json:"note,omitempty"`
	Quote          *models.PriceQuote    `json:"quote,omitempty"`
	CurrentLocSlot Slot                  `json:"current_location_slot,omitempty"`
	ReadyToPrice   bool                  `json:"ready_to_price"`
	ReadyToSubmit  bool                  `json:"ready_to_submit"`
}

func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	stops := make([]models.DeliveryStop, len(f.stops))
	copy(stops, f.stops)
	return Snapshot{
		PickupAddress:  f.pickupAddress,
		PickupCoord:    f.pickupCoord,
		Stops:          stops,
		Sender:         f.sender,
		Vehicle:        f.vehicle,
		Urgent:         f.urgent,
		UrgencyFee:     f.urgencyFee,
		Note:           f.note,
		Quote:          f.quote,
		CurrentLocSlot: f.currentLoc,
		ReadyToPrice:   f.readyToPriceLocked(),
		ReadyToSubmit:  f.readyToSubmitLocked(),
	}
}
