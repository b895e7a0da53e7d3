package provisioner

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/osmocom-go/hlr-gsup/pkg/metrics"
)

func testMetrics() *metrics.Metrics {
	return metrics.New("hlr_gsup_test_provisioner", prometheus.NewRegistry())
}

func TestFetchAuthDataSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auc/imsi/001017890123453" {
			t.Errorf("path = %q, want /auc/imsi/001017890123453", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ki":"000102030405060708090A0B0C0D0E0F","opc":"101112131415161718191A1B1C1D1E1F","amf":"8000"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, testMetrics())
	rec, err := c.FetchAuthData(context.Background(), "001017890123453")
	if err != nil {
		t.Fatalf("FetchAuthData() error = %v", err)
	}

	ki, err := rec.KiBytes()
	if err != nil {
		t.Fatalf("KiBytes() error = %v", err)
	}
	if hex.EncodeToString(ki) != "000102030405060708090a0b0c0d0e0f" {
		t.Errorf("KiBytes() = %x, want 000102030405060708090a0b0c0d0e0f", ki)
	}
}

func TestFetchAuthDataNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, testMetrics())
	_, err := c.FetchAuthData(context.Background(), "001017890123453")
	if err == nil {
		t.Fatal("FetchAuthData() with 404: want error, got nil")
	}
}

func TestFetchAuthDataMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ki":"0001"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, testMetrics())
	_, err := c.FetchAuthData(context.Background(), "001017890123453")
	if err == nil {
		t.Fatal("FetchAuthData() with missing opc/amf: want error, got nil")
	}
}

func TestFetchAuthDataRetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ki":"00","opc":"00","amf":"8000"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, testMetrics())
	_, err := c.FetchAuthData(context.Background(), "001017890123453")
	if err != nil {
		t.Fatalf("FetchAuthData() error = %v", err)
	}
	if attempts < 2 {
		t.Errorf("attempts = %d, want >= 2 (should have retried the 503)", attempts)
	}
}
