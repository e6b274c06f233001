package adaptor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/dto/request"
	"bus-booking/internal/dto/response"
)

type fakeBusService struct {
	register func(*request.RegisterBusRequest) (*response.BusResponse, error)
	get      func(string) (*response.BusResponse, error)
	update   func(string, *request.UpdateLayoutRequest) (*response.LayoutUpdateResponse, error)
}

func (f *fakeBusService) RegisterBus(_ context.Context, req *request.RegisterBusRequest) (*response.BusResponse, error) {
	return f.register(req)
}

func (f *fakeBusService) GetBus(_ context.Context, busID string) (*response.BusResponse, error) {
	return f.get(busID)
}

func (f *fakeBusService) UpdateLayout(_ context.Context, busID string, req *request.UpdateLayoutRequest) (*response.LayoutUpdateResponse, error) {
	return f.update(busID, req)
}

type fakeTripService struct {
	open     func(*request.OpenTripRequest) (*response.TripResponse, error)
	seatMap  func(tripID, viewer string) (*response.SeatMapResponse, error)
	topology func(tripID string) (*entity.SeatTopology, error)
}

func (f *fakeTripService) OpenTrip(_ context.Context, req *request.OpenTripRequest) (*response.TripResponse, error) {
	return f.open(req)
}

func (f *fakeTripService) SeatMap(_ context.Context, tripID, viewer string) (*response.SeatMapResponse, error) {
	return f.seatMap(tripID, viewer)
}

func (f *fakeTripService) Topology(_ context.Context, tripID string) (*entity.SeatTopology, error) {
	return f.topology(tripID)
}

type holdCall struct {
	tripID string
	seats  []string
	token  string
	ttl    time.Duration
}

type fakeReservationService struct {
	calls      []holdCall
	acquire    func(holdCall) (*response.HoldResponse, error)
	renew      func(holdCall) (*response.HoldResponse, error)
	release    func(holdCall) (*response.ReleaseResponse, error)
	releaseAll func(holdCall) (*response.ReleaseResponse, error)
	sweep      func(tripID string) (int, error)
}

func (f *fakeReservationService) Acquire(_ context.Context, tripID string, seatIDs []string, token string, ttl time.Duration) (*response.HoldResponse, error) {
	c := holdCall{tripID, seatIDs, token, ttl}
	f.calls = append(f.calls, c)
	return f.acquire(c)
}

func (f *fakeReservationService) Renew(_ context.Context, tripID string, seatIDs []string, token string, ttl time.Duration) (*response.HoldResponse, error) {
	c := holdCall{tripID, seatIDs, token, ttl}
	f.calls = append(f.calls, c)
	return f.renew(c)
}

func (f *fakeReservationService) Release(_ context.Context, tripID string, seatIDs []string, token string) (*response.ReleaseResponse, error) {
	c := holdCall{tripID: tripID, seats: seatIDs, token: token}
	f.calls = append(f.calls, c)
	return f.release(c)
}

func (f *fakeReservationService) ReleaseAll(_ context.Context, tripID, token string) (*response.ReleaseResponse, error) {
	c := holdCall{tripID: tripID, token: token}
	f.calls = append(f.calls, c)
	return f.releaseAll(c)
}

func (f *fakeReservationService) SweepExpired(_ context.Context, tripID string) (int, error) {
	return f.sweep(tripID)
}

type fakeBookingService struct {
	commit func(tripID string, seats []string, token string, details entity.PassengerDetails) (*response.BookingResponse, error)
	get    func(string) (*response.BookingResponse, error)
}

func (f *fakeBookingService) Commit(_ context.Context, tripID string, seatIDs []string, token string, details entity.PassengerDetails) (*response.BookingResponse, error) {
	return f.commit(tripID, seatIDs, token, details)
}

func (f *fakeBookingService) GetBooking(_ context.Context, bookingID string) (*response.BookingResponse, error) {
	return f.get(bookingID)
}

// envelope mirrors utils.Response with raw payloads for inspection.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}
