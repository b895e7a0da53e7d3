package audit

import (
	"context"
	"testing"
	"time"
)

func TestNewWithEmptyDSNIsNoOp(t *testing.T) {
	w, err := New("", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w.db != nil {
		t.Fatal("New(\"\", nil).db != nil, want a no-op Writer")
	}
}

func TestRecordOnNoOpWriterDoesNotPanic(t *testing.T) {
	w, err := New("", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w.Record(context.Background(), Event{
		Timestamp: time.Now(),
		Peer:      "10.0.0.1:1234",
		IMSI:      "001010000000001",
		Procedure: "UpdateLocation",
		Outcome:   "success",
	})
}

func TestCloseOnNoOpWriterIsNil(t *testing.T) {
	w, _ := New("", nil)
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
