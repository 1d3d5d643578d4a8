package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
)

func TestConfigureSearchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/configure" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req configureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.DPBits != 16 {
			t.Fatalf("dp_bits = %d, want 16", req.DPBits)
		}
		json.NewEncoder(w).Encode(configureResponse{Success: true, Message: "configured"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	msg, err := c.ConfigureSearch(context.Background(), "0", "FFFFFFFF", "02abcd", "1000000", 16)
	if err != nil {
		t.Fatal(err)
	}
	if msg != "configured" {
		t.Fatalf("message = %q", msg)
	}
}

func TestConfigureSearchRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(configureResponse{Success: false, Message: "bad range"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.ConfigureSearch(context.Background(), "0", "1", "02ab", "10", 16); err == nil {
		t.Fatal("expected error on rejected configure")
	}
}

func TestGetWorkReturnsAssignedRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(getWorkResponse{
			Success: true,
			Work: &Work{RangeID: "r1", StartRange: "0", EndRange: "FF", BitRange: 40, DPBits: 16, PubKey: "02ab"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	work, ok, err := c.GetWork(context.Background(), "client-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if work.RangeID != "r1" || work.BitRange != 40 {
		t.Fatalf("unexpected work: %+v", work)
	}
}

func TestGetWorkNoneAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(getWorkResponse{Success: false})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, ok, err := c.GetWork(context.Background(), "client-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false when no work is assignable")
	}
}

func TestSubmitPointsEncodesRecords(t *testing.T) {
	var seen submitPointsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(submitPointsResponse{Status: "ok", PointsProcessed: len(seen.Points)})
	}))
	defer srv.Close()

	var key [dp.KeySize]byte
	copy(key[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	rec := dp.NewRecord(key, ec.ScalarFromUint64(12345), dp.WILD1)

	c := New(srv.URL)
	status, solution, err := c.SubmitPoints(context.Background(), "client-1", []dp.Record{rec})
	if err != nil {
		t.Fatal(err)
	}
	if status != "ok" || solution != "" {
		t.Fatalf("status=%q solution=%q", status, solution)
	}
	if seen.ClientID != "client-1" {
		t.Fatalf("client_id = %q", seen.ClientID)
	}
	if len(seen.Points) != 1 || seen.Points[0].KangType != int(dp.WILD1) {
		t.Fatalf("unexpected points: %+v", seen.Points)
	}
}

func TestSubmitPointsSolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(submitPointsResponse{Status: "solved", Solution: "ABCD"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	status, solution, err := c.SubmitPoints(context.Background(), "client-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != "solved" || solution != "ABCD" {
		t.Fatalf("status=%q solution=%q", status, solution)
	}
}

func TestStatusUnsolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		json.NewEncoder(w).Encode(statusResponse{Solved: false})
	}))
	defer srv.Close()

	c := New(srv.URL)
	solved, _, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if solved {
		t.Fatal("expected solved=false")
	}
}

func TestDoRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
