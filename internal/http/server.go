package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/example/carpool/internal/auth"
	"github.com/example/carpool/internal/config"
	"github.com/example/carpool/internal/dispatch"
	"github.com/example/carpool/internal/geo"
	"github.com/example/carpool/internal/ingest"
	"github.com/example/carpool/internal/logging"
	"github.com/example/carpool/internal/matcher"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/payments"
	"github.com/example/carpool/internal/route"
	"github.com/example/carpool/internal/storage"
)

type Server struct {
	Trips      storage.TripStore
	Deliveries storage.DeliveryStore
	Users      storage.UserStore
	Auth       *auth.Service
	Geo        geo.Geo
	Matcher    *matcher.Service
	Kafka      *ingest.KafkaProducer
	WSReg      *dispatch.WSRegistry
	Payments   *payments.StripeClient
	Geocoder   *route.Geocoder

	logger  *slog.Logger
	mux     *mux.Router
	handler http.Handler

	// PaymentIntent ids held per trip:user booking, released or captured
	// when the trip resolves.
	pmu     sync.Mutex
	intents map[string]string
}

// Deps carries the wired collaborators into NewServer so tests can swap
// any of them for in-memory fakes.
type Deps struct {
	Trips      storage.TripStore
	Deliveries storage.DeliveryStore
	Users      storage.UserStore
	Auth       *auth.Service
	Geo        geo.Geo
	Matcher    *matcher.Service
	Kafka      *ingest.KafkaProducer
	Payments   *payments.StripeClient
	Geocoder   *route.Geocoder
	Logger     *slog.Logger
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.NewLogger("info")
	}
	s := &Server{
		Trips:      d.Trips,
		Deliveries: d.Deliveries,
		Users:      d.Users,
		Auth:       d.Auth,
		Geo:        d.Geo,
		Matcher:    d.Matcher,
		Kafka:      d.Kafka,
		Payments:   d.Payments,
		Geocoder:   d.Geocoder,
		WSReg:      dispatch.NewWSRegistry(logging.WithComponent(d.Logger, "ws")),
		logger:     d.Logger,
		mux:        mux.NewRouter(),
		intents:    make(map[string]string),
	}
	if s.Matcher != nil && s.Matcher.Dispatch == nil {
		s.Matcher.Dispatch = s.WSReg
	}
	s.registerMiddleware()
	s.routes()
	s.handler = cors.AllowAll().Handler(s.mux)
	return s
}

// NewServerFromConfig builds the production wiring: Postgres when a DSN
// is configured, the Redis geo index when Redis is, and in-memory
// fallbacks otherwise.
func NewServerFromConfig(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var trips storage.TripStore
	var deliveries storage.DeliveryStore
	var users storage.UserStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		trips, deliveries, users = ps, ps, ps
	} else {
		ms := storage.NewMemoryStore()
		trips, deliveries, users = ms, ms, ms
	}

	var g geo.Geo
	if cfg.RedisAddr != "" {
		g = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		g = geo.NewIndex()
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = "dev-secret"
		logger.Warn("JWT_SECRET not set, using development secret")
	}
	tokens, err := auth.NewManager(secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	var planner route.Planner
	if cfg.RoutingEndpoint != "" {
		planner = route.NewOSRMClient(cfg.RoutingEndpoint)
	}
	var geocoder *route.Geocoder
	if cfg.GeocodeEndpoint != "" {
		geocoder = route.NewGeocoder(cfg.GeocodeEndpoint)
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var pay *payments.StripeClient
	if os.Getenv("STRIPE_API_KEY") != "" {
		pay = payments.NewStripeClient()
	}

	m := &matcher.Service{
		Geo:             g,
		Trips:           trips,
		Planner:         planner,
		RouteCache:      route.NewCache(5 * time.Minute),
		DefaultSpeedMps: cfg.DefaultSpeedMps,
		TopN:            cfg.MatcherTopN,
	}

	return NewServer(Deps{
		Trips:      trips,
		Deliveries: deliveries,
		Users:      users,
		Auth:       auth.NewService(users, tokens),
		Geo:        g,
		Matcher:    m,
		Kafka:      kp,
		Payments:   pay,
		Geocoder:   geocoder,
		Logger:     logger,
	}), nil
}

func (s *Server) routes() {
	r := s.mux

	r.HandleFunc("/Auth/register", s.handleRegister).Methods("POST")
	r.HandleFunc("/Auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/Auth/confirm-email", s.handleConfirmEmail).Methods("GET")

	r.HandleFunc("/Trip", s.handleListTrips).Methods("GET")
	r.HandleFunc("/Trip", s.handleCreateTrip).Methods("POST")
	r.HandleFunc("/Trip/search", s.handleSearchTrips).Methods("GET")
	r.HandleFunc("/Trip/book", s.handleBookTrip).Methods("POST")
	r.HandleFunc("/Trip/cancel/passenger", s.handleCancelBooking).Methods("POST")
	r.HandleFunc("/Trip/cancel/driver", s.handleCancelTrip).Methods("POST")
	r.HandleFunc("/Trip/complete/{id:[0-9]+}", s.handleCompleteTrip).Methods("POST")
	r.HandleFunc("/Trip/check-booking/{id:[0-9]+}", s.handleCheckBooking).Methods("GET")
	r.HandleFunc("/Trip/my-trips", s.handleMyTrips).Methods("GET")
	r.HandleFunc("/Trip/my-bookings", s.handleMyBookings).Methods("GET")
	r.HandleFunc("/Trip/{id:[0-9]+}", s.handleGetTrip).Methods("GET")
	r.HandleFunc("/Trip/{id:[0-9]+}/participants", s.handleTripParticipants).Methods("GET")

	r.HandleFunc("/Delivery", s.handleCreateDelivery).Methods("POST")
	r.HandleFunc("/Delivery/pending", s.handlePendingDeliveries).Methods("GET")
	r.HandleFunc("/Delivery/selected-for-me", s.handleSelectedForMe).Methods("GET")
	r.HandleFunc("/Delivery/my-requests", s.handleMyRequests).Methods("GET")
	r.HandleFunc("/Delivery/my-deliveries", s.handleMyDeliveries).Methods("GET")
	r.HandleFunc("/Delivery/check-expired", s.handleCheckExpired).Methods("POST")
	r.HandleFunc("/Delivery/matching-trips/{id:[0-9]+}", s.handleMatchingTrips).Methods("GET")
	r.HandleFunc("/Delivery/{id:[0-9]+}", s.handleGetDelivery).Methods("GET")
	r.HandleFunc("/Delivery/{id:[0-9]+}/select-trip", s.handleSelectTrip).Methods("POST")
	r.HandleFunc("/Delivery/{id:[0-9]+}/accept", s.handleAcceptDelivery).Methods("POST")
	r.HandleFunc("/Delivery/{id:[0-9]+}/reject", s.handleRejectDelivery).Methods("POST")
	r.HandleFunc("/Delivery/{id:[0-9]+}/status", s.handleUpdateDeliveryStatus).Methods("PUT")
	r.HandleFunc("/Delivery/{id:[0-9]+}/cancel", s.handleCancelDelivery).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

func respond[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Envelope[T]{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string, errs ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Envelope[any]{Success: false, Message: msg, Errors: errs})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		fail(w, http.StatusBadRequest, "Malformed request body.")
		return false
	}
	return true
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fail(w, http.StatusBadRequest, "Websocket upgrade failed.")
		return
	}
	s.WSReg.Add(id, conn)
	go func() {
		defer s.WSReg.Remove(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// publish pushes a lifecycle event to Kafka, best-effort.
func (s *Server) publish(kind string, id int64, from, to string, actor models.UserID) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishTransition(ingest.Event{Kind: kind, ID: id, From: from, To: to, Actor: actor}); err != nil {
		s.logger.Warn("event publish failed", "kind", kind, "id", id, "err", err)
	}
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
