package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/courier-booking/internal/addressbook"
	"github.com/example/courier-booking/internal/booking"
	"github.com/example/courier-booking/internal/dispatch"
	"github.com/example/courier-booking/internal/geocode"
	"github.com/example/courier-booking/internal/location"
	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/pricing"
	"github.com/example/courier-booking/internal/storage"
	"github.com/example/courier-booking/internal/upstream"
)

// Server is the booking gateway HTTP API.
type Server struct {
	Bookings  *booking.Manager
	Geocoder  *geocode.Client
	Resolver  *location.Resolver
	Directory *addressbook.Directory
	Store     storage.OrderStore
	WSReg     *dispatch.WSRegistry
	Debounce  time.Duration

	logger *slog.Logger
	mux    *mux.Router

	// locMu guards the per-booking location sessions: the device position
	// is fetched at most once per booking session unless explicitly
	// refreshed.
	locMu       sync.Mutex
	locSessions map[string]*location.Session
}

func NewServer(bookings *booking.Manager, geocoder *geocode.Client, resolver *location.Resolver,
	directory *addressbook.Directory, store storage.OrderStore, wsreg *dispatch.WSRegistry,
	debounce time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		Bookings:  bookings,
		Geocoder:  geocoder,
		Resolver:  resolver,
		Directory: directory,
		Store:     store,
		WSReg:     wsreg,
		Debounce:  debounce,
		logger:    logger,
		mux:       mux.NewRouter(),

		locSessions: make(map[string]*location.Session),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/bookings", s.handleCreateBooking).Methods("POST")
	api.HandleFunc("/bookings/{id}", s.handleGetBooking).Methods("GET")
	api.HandleFunc("/bookings/{id}", s.handleUpdateBooking).Methods("PATCH")
	api.HandleFunc("/bookings/{id}", s.handleDropBooking).Methods("DELETE")
	api.HandleFunc("/bookings/{id}/price", s.handlePrice).Methods("POST")
	api.HandleFunc("/bookings/{id}/submit", s.handleSubmit).Methods("POST")
	api.HandleFunc("/bookings/{id}/current-location", s.handleCurrentLocation).Methods("POST")
	api.HandleFunc("/location/search", s.handleSearch).Methods("GET")
	api.HandleFunc("/location/details", s.handleDetails).Methods("GET")
	api.HandleFunc("/address-book", s.handleAddressBook).Methods("GET")
	api.HandleFunc("/orders", s.handleOrders).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{session_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// --- Booking sessions ---

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	id, f := s.Bookings.Create()
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": id, "booking": f.Snapshot()})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	f, ok := s.Bookings.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "no such booking session")
		return
	}
	writeJSON(w, http.StatusOK, f.Snapshot())
}

func (s *Server) handleDropBooking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.Bookings.Drop(id)
	s.locMu.Lock()
	delete(s.locSessions, id)
	s.locMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// locSession returns the booking's location session, creating it on first
// use.
func (s *Server) locSession(bookingID string) *location.Session {
	s.locMu.Lock()
	defer s.locMu.Unlock()
	sess, ok := s.locSessions[bookingID]
	if !ok {
		sess = location.NewSession()
		s.locSessions[bookingID] = sess
	}
	return sess
}

type stopUpdate struct {
	Address   string          `json:"address"`
	Coord     *models.Coord   `json:"coord"`
	Recipient *models.Contact `json:"recipient"`
}

type updateRequest struct {
	Pickup *struct {
		Address string        `json:"address"`
		Coord   *models.Coord `json:"coord"`
	} `json:"pickup"`
	Stops      *[]stopUpdate   `json:"stops"`
	Sender     *models.Contact `json:"sender"`
	Vehicle    *string         `json:"vehicle"`
	Urgent     *bool           `json:"urgent"`
	UrgencyFee *int64          `json:"urgency_fee"`
	Note       *string         `json:"note"`
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	f, ok := s.Bookings.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "no such booking session")
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := applyUpdate(f, req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, f.Snapshot())
}

func applyUpdate(f *booking.Form, req updateRequest) error {
	if req.Pickup != nil {
		f.SetPickup(req.Pickup.Address, req.Pickup.Coord)
	}
	if req.Stops != nil {
		stops := *req.Stops
		if len(stops) == 0 {
			return errors.New("booking needs at least one delivery stop")
		}
		// Grow or shrink to the requested leg count, then set each leg.
		for len(f.Snapshot().Stops) < len(stops) {
			f.AddStop()
		}
		for len(f.Snapshot().Stops) > len(stops) {
			if err := f.RemoveStop(len(f.Snapshot().Stops) - 1); err != nil {
				return err
			}
		}
		for i, st := range stops {
			if err := f.SetStop(i, st.Address, st.Coord); err != nil {
				return err
			}
			if st.Recipient != nil {
				if err := f.SetRecipient(i, *st.Recipient); err != nil {
					return err
				}
			}
		}
	}
	if req.Sender != nil {
		f.SetSender(*req.Sender)
	}
	if req.Vehicle != nil {
		f.SetVehicle(models.VehicleType(*req.Vehicle))
	}
	if req.Urgent != nil {
		f.SetUrgent(*req.Urgent)
	}
	if req.UrgencyFee != nil {
		f.SetUrgencyFee(*req.UrgencyFee)
	}
	if req.Note != nil {
		f.SetNote(*req.Note)
	}
	return nil
}

// --- Pricing ---

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	f, ok := s.Bookings.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "no such booking session")
		return
	}
	q, err := s.Bookings.Recalculate(r.Context(), f)
	switch {
	case errors.Is(err, pricing.ErrNotReady):
		// Not an error: the form simply isn't complete enough to price.
		writeJSON(w, http.StatusOK, map[string]any{"ready": false})
	case errors.Is(err, booking.ErrCalculationInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Warn("price calculation failed", "error", err)
		writeError(w, http.StatusBadGateway, "price calculation failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ready": true, "quote": q})
	}
}

// --- Submission ---

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	o, err := s.Bookings.Submit(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, booking.ErrNoSession):
		writeError(w, http.StatusNotFound, "no such booking session")
	case errors.Is(err, booking.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrNotSubmittable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, upstream.ErrInsufficientBalance):
		// The one rejection with a recovery path: the client redirects to
		// wallet funding instead of showing a bare failure.
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":    "insufficient wallet balance",
			"recovery": "fund-wallet",
		})
	case err != nil:
		s.logger.Warn("order submission failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not place order")
	default:
		writeJSON(w, http.StatusCreated, o)
	}
}

// --- Location ---

type currentLocationRequest struct {
	Slot   string  `json:"slot"`
	Status string  `json:"status"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`

	// Refresh discards the booking's remembered resolution and forces a
	// fresh fix, e.g. after the user physically moved.
	Refresh bool `json:"refresh"`
}

func (s *Server) handleCurrentLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, ok := s.Bookings.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such booking session")
		return
	}
	var req currentLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slot := booking.Slot(req.Slot)

	// Slot and conflict checks happen before any resolution work so a
	// rejected claim never touches the cache or the geocoder.
	if err := f.ValidateSlot(slot); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if cur := f.CurrentLocationSlot(); cur != "" && cur != slot {
		writeError(w, http.StatusConflict, booking.ErrCurrentLocationTaken.Error())
		return
	}

	locSess := s.locSession(id)
	if req.Refresh {
		locSess.Invalidate()
	}
	res, err := locSess.Current(r.Context(), s.Resolver, location.ReportedFix{
		Status: req.Status,
		Coord:  models.Coord{Lat: req.Lat, Lon: req.Lon},
	})
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, location.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Warn("current location resolution failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not resolve current location")
		return
	}

	if err := f.SetFromCurrentLocation(slot, res.Address, res.Coord); err != nil {
		status := http.StatusConflict
		if !errors.Is(err, booking.ErrCurrentLocationTaken) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": res.Address,
		"coord":   res.Coord,
		"booking": f.Snapshot(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	candidates := s.Geocoder.Search(r.Context(), q)
	if len(candidates) == 0 {
		candidates = geocode.StaticFallback(q, s.Resolver.LastKnown(r.Context()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	placeID := r.URL.Query().Get("place_id")
	details, err := s.Geocoder.Details(r.Context(), placeID)
	if err != nil {
		s.logger.Warn("place details lookup failed", "place_id", placeID, "error", err)
		writeError(w, http.StatusBadGateway, "could not resolve place")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// --- Address book / orders ---

func (s *Server) handleAddressBook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	role := addressbook.Role(r.URL.Query().Get("role"))
	entries, err := s.Directory.Lookup(r.Context(), query, role)
	if err != nil {
		s.logger.Warn("address book lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not load address book")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	orders, err := s.Store.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// --- Websocket: status push + interactive search ---

var upgrader = websocket.Upgrader{}

type wsInbound struct {
	Type  string `json:"type"`
	Query string `json:"query"`
}

// handleWS upgrades the client connection, registers it for order-status
// pushes, and runs the interactive search loop: the client streams
// keystrokes, the server debounces them and pushes back result sets,
// dropping responses that a newer keystroke has superseded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := s.WSReg.Add(sessionID, conn)

	searcher := geocode.NewSearcher(s.Geocoder.Search, s.Debounce, func(query string, results []models.LocationCandidate) {
		if len(results) == 0 {
			results = geocode.StaticFallback(query, s.Resolver.LastKnown(context.Background()))
		}
		if err := sess.SendJSON(map[string]any{"type": "search_results", "query": query, "candidates": results}); err != nil {
			s.logger.Debug("ws search result push failed", "session_id", sessionID, "error", err)
		}
	})

	go func() {
		defer func() {
			searcher.Close()
			s.WSReg.Remove(sessionID)
			conn.Close()
		}()
		for {
			var msg wsInbound
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "search" {
				// The request context dies with the handler; searches are
				// tied to the socket's lifetime instead.
				searcher.Query(context.Background(), msg.Query)
			}
		}
	}()
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
