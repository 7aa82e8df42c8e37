package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/carpool/internal/auth"
	"github.com/example/carpool/internal/geo"
	"github.com/example/carpool/internal/matcher"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ms := storage.NewMemoryStore()
	tokens, err := auth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	g := geo.NewIndex()
	m := &matcher.Service{Geo: g, Trips: ms, DefaultSpeedMps: 10, TopN: 8}
	srv := NewServer(Deps{
		Trips:      ms,
		Deliveries: ms,
		Users:      ms,
		Auth:       auth.NewService(ms, tokens),
		Geo:        g,
		Matcher:    m,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func parseEnv[T any](t *testing.T, raw []byte) models.Envelope[T] {
	t.Helper()
	var env models.Envelope[T]
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func registerAndLogin(t *testing.T, ts *httptest.Server, name, email, role string) (string, models.User) {
	t.Helper()
	status, _ := call(t, ts, http.MethodPost, "/Auth/register", "", models.RegisterInput{
		FullName: name, Email: email, Password: "secret-pass", Role: role,
	})
	require.Equal(t, http.StatusCreated, status)

	status, raw := call(t, ts, http.MethodPost, "/Auth/login", "", models.LoginInput{Email: email, Password: "secret-pass"})
	require.Equal(t, http.StatusOK, status)
	env := parseEnv[models.AuthReply](t, raw)
	require.True(t, env.Success)
	require.NotEmpty(t, env.Data.Token)
	return env.Data.Token, env.Data.User
}

func createTrip(t *testing.T, ts *httptest.Server, token string, in models.CreateTripInput) models.Trip {
	t.Helper()
	status, raw := call(t, ts, http.MethodPost, "/Trip", token, in)
	require.Equal(t, http.StatusCreated, status)
	env := parseEnv[models.Trip](t, raw)
	require.True(t, env.Success)
	return env.Data
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "Ana", "ana@example.com", "")

	status, raw := call(t, ts, http.MethodPost, "/Auth/login", "", models.LoginInput{Email: "ana@example.com", Password: "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, status)
	env := parseEnv[any](t, raw)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Message)
}

func TestCreateTripRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	status, raw := call(t, ts, http.MethodPost, "/Trip", "", models.CreateTripInput{
		Source: "Berlin", Destination: "Hamburg", AvailableSeats: 2, DepartureTime: time.Now().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, parseEnv[any](t, raw).Success)
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	driverTok, _ := registerAndLogin(t, ts, "Dora", "dora@example.com", "driver")
	paxTok, pax := registerAndLogin(t, ts, "Pat", "pat@example.com", "")

	trip := createTrip(t, ts, driverTok, models.CreateTripInput{
		Source: "Berlin", Destination: "Hamburg", AvailableSeats: 2,
		DepartureTime: time.Now().Add(48 * time.Hour), PricePerSeat: 19,
	})

	// the driver cannot book their own trip
	status, raw := call(t, ts, http.MethodPost, "/Trip/book", driverTok, models.BookTripInput{TripID: trip.ID, SeatCount: 1})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.False(t, parseEnv[any](t, raw).Success)

	status, raw = call(t, ts, http.MethodPost, "/Trip/book", paxTok, models.BookTripInput{TripID: trip.ID, SeatCount: 2})
	require.Equal(t, http.StatusOK, status)
	reply := parseEnv[models.BookingReply](t, raw)
	require.True(t, reply.Success)
	require.Equal(t, "Confirmed", reply.Data.Status)
	require.Equal(t, pax.ID, reply.Data.UserID)

	// booked seats show up everywhere
	status, raw = call(t, ts, http.MethodGet, "/Trip/check-booking/"+itoa(trip.ID), paxTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, parseEnv[bool](t, raw).Data)

	status, raw = call(t, ts, http.MethodGet, "/Trip/my-bookings", paxTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, parseEnv[[]models.TripSummary](t, raw).Data, 1)

	// double booking is rejected before any seat math runs
	status, _ = call(t, ts, http.MethodPost, "/Trip/book", paxTok, models.BookTripInput{TripID: trip.ID, SeatCount: 1})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	// seats are gone for everyone else
	otherTok, _ := registerAndLogin(t, ts, "Olu", "olu@example.com", "")
	status, raw = call(t, ts, http.MethodPost, "/Trip/book", otherTok, models.BookTripInput{TripID: trip.ID, SeatCount: 1})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.False(t, parseEnv[any](t, raw).Success)

	// first booking confirmed the trip, so the driver can complete it
	status, raw = call(t, ts, http.MethodPost, "/Trip/complete/"+itoa(trip.ID), driverTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.TripCompleted, parseEnv[models.Trip](t, raw).Data.Status)
}

func TestDriverCancelValidatesReason(t *testing.T) {
	ts := newTestServer(t)
	driverTok, _ := registerAndLogin(t, ts, "Dora", "dora@example.com", "driver")
	trip := createTrip(t, ts, driverTok, models.CreateTripInput{
		Source: "Berlin", Destination: "Hamburg", AvailableSeats: 3, DepartureTime: time.Now().Add(48 * time.Hour),
	})

	status, _ := call(t, ts, http.MethodPost, "/Trip/cancel/driver", driverTok, models.CancelTripInput{TripID: trip.ID, Reason: "too short"})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, raw := call(t, ts, http.MethodPost, "/Trip/cancel/driver", driverTok, models.CancelTripInput{TripID: trip.ID, Reason: "the car broke down badly"})
	require.Equal(t, http.StatusOK, status)
	require.True(t, parseEnv[bool](t, raw).Data)

	status, raw = call(t, ts, http.MethodGet, "/Trip/"+itoa(trip.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.TripCancelled, parseEnv[models.Trip](t, raw).Data.Status)

	// cancelled trips cannot be cancelled again
	status, _ = call(t, ts, http.MethodPost, "/Trip/cancel/driver", driverTok, models.CancelTripInput{TripID: trip.ID, Reason: "the car broke down badly"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestDeliveryLifecycle(t *testing.T) {
	ts := newTestServer(t)
	driverTok, _ := registerAndLogin(t, ts, "Dora", "dora@example.com", "driver")
	senderTok, _ := registerAndLogin(t, ts, "Sam", "sam@example.com", "")

	maxW := 20.0
	trip := createTrip(t, ts, driverTok, models.CreateTripInput{
		Source: "Berlin", Destination: "Hamburg", AvailableSeats: 3,
		DepartureTime: time.Now().Add(48 * time.Hour), AcceptsDeliveries: true, MaxDeliveryWeight: &maxW,
	})

	status, raw := call(t, ts, http.MethodPost, "/Delivery", senderTok, models.CreateDeliveryInput{
		SourceLocation: "Berlin", DropoffLocation: "Hamburg", Weight: 4, Price: 12,
		WindowStart: time.Now().Add(time.Hour), WindowEnd: time.Now().Add(72 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, status)
	d := parseEnv[models.DeliveryRequest](t, raw).Data
	require.Equal(t, models.DeliveryPending, d.Status)

	// sender sees the open trip as a candidate
	status, raw = call(t, ts, http.MethodGet, "/Delivery/matching-trips/"+itoa(d.ID), senderTok, nil)
	require.Equal(t, http.StatusOK, status)
	cands := parseEnv[[]models.TripSummary](t, raw).Data
	require.Len(t, cands, 1)
	require.Equal(t, trip.ID, cands[0].TripID)

	status, raw = call(t, ts, http.MethodPost, "/Delivery/"+itoa(d.ID)+"/select-trip", senderTok, models.SelectTripInput{TripID: trip.ID})
	require.Equal(t, http.StatusOK, status)
	selected := parseEnv[models.DeliveryRequest](t, raw).Data
	require.Equal(t, models.DeliveryTripSelected, selected.Status)
	require.NotNil(t, selected.TripID)
	require.Equal(t, trip.ID, *selected.TripID)

	// only the driver of the selected trip may accept
	status, _ = call(t, ts, http.MethodPost, "/Delivery/"+itoa(d.ID)+"/accept", senderTok, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, raw = call(t, ts, http.MethodGet, "/Delivery/selected-for-me", driverTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, parseEnv[[]models.DeliveryRequest](t, raw).Data, 1)

	status, raw = call(t, ts, http.MethodPost, "/Delivery/"+itoa(d.ID)+"/accept", driverTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.DeliveryAccepted, parseEnv[models.DeliveryRequest](t, raw).Data.Status)

	// forward only: Delivered straight from Accepted is refused
	status, _ = call(t, ts, http.MethodPut, "/Delivery/"+itoa(d.ID)+"/status", driverTok, models.UpdateDeliveryStatusInput{Status: models.DeliveryDelivered})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = call(t, ts, http.MethodPut, "/Delivery/"+itoa(d.ID)+"/status", driverTok, models.UpdateDeliveryStatusInput{Status: models.DeliveryInTransit})
	require.Equal(t, http.StatusOK, status)
	status, raw = call(t, ts, http.MethodPut, "/Delivery/"+itoa(d.ID)+"/status", driverTok, models.UpdateDeliveryStatusInput{Status: models.DeliveryDelivered})
	require.Equal(t, http.StatusOK, status)
	final := parseEnv[models.DeliveryRequest](t, raw).Data
	require.Equal(t, models.DeliveryDelivered, final.Status)
	require.GreaterOrEqual(t, len(final.History), 4)

	// a delivered request is immutable
	status, _ = call(t, ts, http.MethodPost, "/Delivery/"+itoa(d.ID)+"/cancel", senderTok, nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, raw = call(t, ts, http.MethodGet, "/Delivery/my-deliveries", driverTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, parseEnv[[]models.DeliveryRequest](t, raw).Data, 1)
}

func TestSenderCanCancelPendingDelivery(t *testing.T) {
	ts := newTestServer(t)
	senderTok, _ := registerAndLogin(t, ts, "Sam", "sam@example.com", "")
	otherTok, _ := registerAndLogin(t, ts, "Oz", "oz@example.com", "")

	status, raw := call(t, ts, http.MethodPost, "/Delivery", senderTok, models.CreateDeliveryInput{
		SourceLocation: "A", DropoffLocation: "B", Weight: 1,
		WindowStart: time.Now(), WindowEnd: time.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, status)
	d := parseEnv[models.DeliveryRequest](t, raw).Data

	// strangers cannot even read it
	status, _ = call(t, ts, http.MethodGet, "/Delivery/"+itoa(d.ID), otherTok, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, raw = call(t, ts, http.MethodPost, "/Delivery/"+itoa(d.ID)+"/cancel", senderTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, models.DeliveryCancelled, parseEnv[models.DeliveryRequest](t, raw).Data.Status)
}

func TestCheckExpiredSweep(t *testing.T) {
	ts := newTestServer(t)
	senderTok, _ := registerAndLogin(t, ts, "Sam", "sam@example.com", "")

	status, _ := call(t, ts, http.MethodPost, "/Delivery", senderTok, models.CreateDeliveryInput{
		SourceLocation: "A", DropoffLocation: "B", Weight: 1,
		WindowStart: time.Now().Add(-2 * time.Hour), WindowEnd: time.Now().Add(-time.Hour),
	})
	require.Equal(t, http.StatusCreated, status)

	status, raw := call(t, ts, http.MethodPost, "/Delivery/check-expired", senderTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, parseEnv[int](t, raw).Data)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
