package health

import (
	"errors"
	"testing"
)

func TestNewIsHealthyByDefault(t *testing.T) {
	h := New(Config{Enabled: false})
	status := h.GetStatus()
	if !status.Healthy {
		t.Error("GetStatus().Healthy = false, want true for a fresh Check")
	}
}

func TestUpdateComponentStatusAffectsOverallHealth(t *testing.T) {
	h := New(Config{Enabled: false})
	h.UpdateComponentStatus("provisioner", false, "connection refused")

	status := h.GetStatus()
	if status.Healthy {
		t.Error("GetStatus().Healthy = true, want false after an unhealthy component")
	}
	comp, ok := status.ComponentStatus["provisioner"]
	if !ok || comp.Message != "connection refused" {
		t.Errorf("ComponentStatus[provisioner] = %+v, ok=%v", comp, ok)
	}

	h.UpdateComponentStatus("provisioner", true, "")
	if !h.GetStatus().Healthy {
		t.Error("GetStatus().Healthy = false, want true once the component recovers")
	}
}

func TestRecordErrorAndMessage(t *testing.T) {
	h := New(Config{Enabled: false})
	h.RecordMessage()
	h.RecordMessage()
	h.RecordError(errors.New("boom"))

	status := h.GetStatus()
	if status.MessagesProcessed != 2 {
		t.Errorf("MessagesProcessed = %d, want 2", status.MessagesProcessed)
	}
	if status.ErrorCount != 1 || status.LastError != "boom" {
		t.Errorf("ErrorCount = %d, LastError = %q, want 1, \"boom\"", status.ErrorCount, status.LastError)
	}
}

func TestGetStatusReturnsIndependentCopy(t *testing.T) {
	h := New(Config{Enabled: false})
	h.UpdateComponentStatus("a", true, "")

	status := h.GetStatus()
	status.ComponentStatus["a"] = ComponentStatus{Name: "a", Healthy: false}

	fresh := h.GetStatus()
	if !fresh.ComponentStatus["a"].Healthy {
		t.Error("mutating a returned Status leaked into the Check's internal state")
	}
}
