package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/observability"
	"github.com/example/courier-booking/internal/pricing"
	"github.com/example/courier-booking/internal/storage"
	"github.com/example/courier-booking/internal/upstream"
)

var (
	// ErrNoSession is returned for an unknown booking session id.
	ErrNoSession = errors.New("no such booking session")

	// ErrCalculationInFlight rejects a recalculation while one is running.
	ErrCalculationInFlight = errors.New("price calculation already in progress")

	// ErrSubmitInFlight rejects a duplicate submission attempt.
	ErrSubmitInFlight = errors.New("submission already in progress")

	// ErrNotSubmittable is returned when the submit-readiness predicate
	// does not hold.
	ErrNotSubmittable = errors.New("booking is not ready to submit")
)

// Pricer calculates charges. *pricing.Client satisfies it.
type Pricer interface {
	Charge(ctx context.Context, in pricing.ChargeInput) (*models.PriceQuote, error)
	MultiCharge(ctx context.Context, in pricing.MultiChargeInput) (*models.PriceQuote, error)
}

// OrderAPI places orders upstream. *upstream.Client satisfies it.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req upstream.CreateOrderRequest) (*models.Order, error)
	CreateMultiDeliveryOrder(ctx context.Context, req upstream.CreateMultiOrderRequest) (*models.Order, error)
}

// Publisher emits booking events. *ingest.EventProducer satisfies it; nil
// disables publishing.
type Publisher interface {
	PublishOrder(o models.Order) error
}

// Manager owns the booking sessions and orchestrates pricing and
// submission against the upstream API.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Form

	pricer Pricer
	api    OrderAPI
	store  storage.OrderStore
	events Publisher
	log    *slog.Logger
}

func NewManager(pricer Pricer, api OrderAPI, store storage.OrderStore, events Publisher, log *slog.Logger) *Manager {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Manager{
		sessions: make(map[string]*Form),
		pricer:   pricer,
		api:      api,
		store:    store,
		events:   events,
		log:      log,
	}
}

// Create opens a new booking session and returns its id.
func (m *Manager) Create() (string, *Form) {
	id := uuid.NewString()
	f := NewForm()
	m.mu.Lock()
	m.sessions[id] = f
	m.mu.Unlock()
	return id, f
}

// Get returns the session form, if it exists.
func (m *Manager) Get(id string) (*Form, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.sessions[id]
	return f, ok
}

// Drop discards a session, e.g. when the client navigates away.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Recalculate prices the form. The call is a no-op returning the held
// quote when one already exists for the current inputs, so the pricing
// endpoint is hit exactly once per distinct input tuple. Incomplete inputs
// surface as pricing.ErrNotReady; a failed calculation clears any held
// quote so a stale price is never shown against new inputs.
func (m *Manager) Recalculate(ctx context.Context, f *Form) (*models.PriceQuote, error) {
	f.mu.Lock()
	if !f.readyToPriceLocked() {
		f.mu.Unlock()
		return nil, pricing.ErrNotReady
	}
	key := f.priceKeyLocked()
	if f.quote != nil && f.pricedKey == key {
		q := f.quote
		f.mu.Unlock()
		return q, nil
	}
	if f.calcInFlight {
		f.mu.Unlock()
		return nil, ErrCalculationInFlight
	}
	f.calcInFlight = true
	pickup := f.pickupCoord
	stops := make([]models.DeliveryStop, len(f.stops))
	copy(stops, f.stops)
	vehicle, urgent, fee := f.vehicle, f.urgent, f.urgencyFee
	f.mu.Unlock()

	var q *models.PriceQuote
	var err error
	if len(stops) == 1 {
		q, err = m.pricer.Charge(ctx, pricing.ChargeInput{
			Pickup: pickup, Dropoff: stops[0].Coord,
			Vehicle: vehicle, Urgent: urgent, UrgencyFee: fee,
		})
	} else {
		dropoffs := make([]*models.Coord, len(stops))
		for i, s := range stops {
			dropoffs[i] = s.Coord
		}
		q, err = m.pricer.MultiCharge(ctx, pricing.MultiChargeInput{
			Pickup: pickup, Dropoffs: dropoffs,
			Vehicle: vehicle, Urgent: urgent, UrgencyFee: fee,
		})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calcInFlight = false
	if err != nil {
		f.clearQuoteLocked()
		return nil, err
	}
	// Commit only if the inputs did not change while the call was out.
	if f.priceKeyLocked() == key {
		f.quote = q
		f.pricedKey = key
	}
	return q, nil
}

// Submit places the order for the given session. The in-flight flag makes
// duplicate submissions impossible; callers distinguish the
// insufficient-balance recovery path via
// errors.Is(err, upstream.ErrInsufficientBalance).
func (m *Manager) Submit(ctx context.Context, sessionID string) (*models.Order, error) {
	f, ok := m.Get(sessionID)
	if !ok {
		return nil, ErrNoSession
	}

	f.mu.Lock()
	if f.submitInFlight {
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if !f.readyToSubmitLocked() {
		f.mu.Unlock()
		return nil, ErrNotSubmittable
	}
	f.submitInFlight = true
	pickupAddress := f.pickupAddress
	pickup := *f.pickupCoord
	stops := make([]models.DeliveryStop, len(f.stops))
	copy(stops, f.stops)
	sender := f.sender
	vehicle, urgent, fee, note := f.vehicle, f.urgent, f.urgencyFee, f.note
	f.mu.Unlock()

	var o *models.Order
	var err error
	if len(stops) == 1 {
		o, err = m.api.CreateOrder(ctx, upstream.CreateOrderRequest{
			PickupAddress: pickupAddress, Pickup: pickup, Stop: stops[0],
			Sender: sender, Vehicle: vehicle, Urgent: urgent, UrgencyFee: fee, Note: note,
		})
	} else {
		o, err = m.api.CreateMultiDeliveryOrder(ctx, upstream.CreateMultiOrderRequest{
			PickupAddress: pickupAddress, Pickup: pickup, Stops: stops,
			Sender: sender, Vehicle: vehicle, Urgent: urgent, UrgencyFee: fee, Note: note,
		})
	}

	if err != nil {
		f.mu.Lock()
		f.submitInFlight = false
		f.mu.Unlock()
		if errors.Is(err, upstream.ErrInsufficientBalance) {
			observability.OrdersSubmitted.WithLabelValues("insufficient_balance").Inc()
		} else {
			observability.OrdersSubmitted.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if serr := m.store.SaveOrder(o); serr != nil {
		m.log.Warn("order history save failed", "order_id", o.ID, "error", serr)
	}
	if m.events != nil {
		if perr := m.events.PublishOrder(*o); perr != nil {
			m.log.Warn("booking event publish failed", "order_id", o.ID, "error", perr)
		}
	}

	f.Reset()
	f.mu.Lock()
	f.submitInFlight = false
	f.mu.Unlock()
	observability.OrdersSubmitted.WithLabelValues("success").Inc()
	m.log.Info("order submitted", "order_id", o.ID, "session_id", sessionID, "amount", o.Amount)
	return o, nil
}
