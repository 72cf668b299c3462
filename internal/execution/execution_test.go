package execution

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Bensk-96/pairs-trading-alpaca/internal/alpaca"
)

type fakeVenue struct {
	submitErr   error
	submitted   []alpaca.OrderRequest
	cancelErr   error
	canceled    []string
	cancelAll   []alpaca.CancelStatus
	closeAll    []alpaca.CloseStatus
	closeErr    error
	closeParams alpaca.CloseParams
}

func (f *fakeVenue) SubmitOrder(ctx context.Context, req alpaca.OrderRequest) (alpaca.Order, error) {
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return alpaca.Order{}, f.submitErr
	}
	return alpaca.Order{ID: "oid-1", Symbol: req.Symbol}, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID string) error {
	f.canceled = append(f.canceled, orderID)
	return f.cancelErr
}

func (f *fakeVenue) CancelAllOrders(ctx context.Context) ([]alpaca.CancelStatus, error) {
	return f.cancelAll, nil
}

func (f *fakeVenue) CloseAllPositions(ctx context.Context, cancelOrders bool) ([]alpaca.CloseStatus, error) {
	return f.closeAll, nil
}

func (f *fakeVenue) ClosePosition(ctx context.Context, symbol string, params alpaca.CloseParams) (alpaca.Order, error) {
	f.closeParams = params
	if f.closeErr != nil {
		return alpaca.Order{}, f.closeErr
	}
	return alpaca.Order{Symbol: symbol}, nil
}

func newManager(venue *fakeVenue) *Manager {
	return NewManager(venue, zerolog.Nop())
}

func TestInsertSuccess(t *testing.T) {
	venue := &fakeVenue{}
	mgr := newManager(venue)

	res := mgr.Insert(context.Background(), "NVDA", 100.5, 10, Buy, IOC)
	if !res.OK || res.OrderID != "oid-1" {
		t.Fatalf("expected success with order id, got %+v", res)
	}
	if len(venue.submitted) != 1 {
		t.Fatalf("expected one submission")
	}
	req := venue.submitted[0]
	if req.Type != "limit" || req.TimeInForce != "ioc" || req.Qty != 10 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestInsertValidatesSideAndTIF(t *testing.T) {
	venue := &fakeVenue{}
	mgr := newManager(venue)

	if res := mgr.Insert(context.Background(), "NVDA", 100, 10, Side("hold"), IOC); res.OK || res.Err == nil {
		t.Fatalf("expected invalid side rejection, got %+v", res)
	}
	if res := mgr.Insert(context.Background(), "NVDA", 100, 10, Buy, TimeInForce("fok")); res.OK || res.Err == nil {
		t.Fatalf("expected invalid tif rejection, got %+v", res)
	}
	if len(venue.submitted) != 0 {
		t.Fatalf("invalid requests must not reach the venue")
	}
}

func TestInsertClassifiesFailures(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{&alpaca.APIError{Status: http.StatusForbidden, Body: "risk"}, KindVenueRejected},
		{errors.New("dial tcp: timeout"), KindTransport},
	}
	for _, tc := range cases {
		venue := &fakeVenue{submitErr: tc.err}
		res := newManager(venue).Insert(context.Background(), "AMD", 50, 5, Sell, GTC)
		if res.OK || res.Kind != tc.kind {
			t.Fatalf("expected kind %v for %v, got %+v", tc.kind, tc.err, res)
		}
	}
}

func TestCancelDistinguishesTerminalStates(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusUnprocessableEntity, KindNotCancelable},
		{http.StatusInternalServerError, KindVenueRejected},
	}
	for _, tc := range cases {
		venue := &fakeVenue{cancelErr: &alpaca.APIError{Status: tc.status}}
		res := newManager(venue).Cancel(context.Background(), "oid")
		if res.OK || res.Kind != tc.kind {
			t.Fatalf("status %d: expected kind %v, got %+v", tc.status, tc.kind, res)
		}
	}

	venue := &fakeVenue{}
	if res := newManager(venue).Cancel(context.Background(), "oid"); !res.OK {
		t.Fatalf("expected cancel success, got %+v", res)
	}
}

func TestCancelAllPartialFailure(t *testing.T) {
	venue := &fakeVenue{cancelAll: []alpaca.CancelStatus{
		{ID: "a", Status: 200},
		{ID: "b", Status: 500},
	}}
	res := newManager(venue).CancelAll(context.Background())
	if res.OK {
		t.Fatalf("aggregate success must require every order to cancel")
	}
	if res.Statuses["a"] != 200 || res.Statuses["b"] != 500 {
		t.Fatalf("per-order statuses must be preserved: %+v", res.Statuses)
	}
}

func TestCancelAllAllSucceed(t *testing.T) {
	venue := &fakeVenue{cancelAll: []alpaca.CancelStatus{{ID: "a", Status: 200}}}
	if res := newManager(venue).CancelAll(context.Background()); !res.OK {
		t.Fatalf("expected aggregate success, got %+v", res)
	}
}

func TestCloseAllReportsPerSymbol(t *testing.T) {
	venue := &fakeVenue{closeAll: []alpaca.CloseStatus{
		{Symbol: "NVDA", Status: 200},
		{Symbol: "AMD", Status: 422, Body: "no position"},
	}}
	results := newManager(venue).CloseAll(context.Background(), true)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].OK || results[0].Symbol != "NVDA" {
		t.Fatalf("expected NVDA success, got %+v", results[0])
	}
	if results[1].OK || results[1].Err == nil {
		t.Fatalf("AMD failure must be reported independently, got %+v", results[1])
	}
}

func TestCloseMutuallyExclusiveParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when qty and percentage are both set")
		}
	}()
	qty, pct := 1.0, 50.0
	newManager(&fakeVenue{}).Close(context.Background(), "NVDA", &qty, &pct)
}

func TestCloseFullPosition(t *testing.T) {
	venue := &fakeVenue{}
	res := newManager(venue).Close(context.Background(), "NVDA", nil, nil)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if venue.closeParams.Qty != nil || venue.closeParams.Percentage != nil {
		t.Fatalf("full close must send no sizing params")
	}
}
