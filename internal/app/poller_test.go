package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/florianilch/ex30link/internal/connectedvehicle"
	"github.com/florianilch/ex30link/internal/volvoid"
)

type stubReader struct {
	state connectedvehicle.EnergyState
	err   error
}

func (s stubReader) EnergyState(context.Context, string) (connectedvehicle.EnergyState, error) {
	return s.state, s.err
}

// captureLogs redirects the default logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestPollerLogsState(t *testing.T) {
	logs := captureLogs(t)

	var state connectedvehicle.EnergyState
	state.BatteryChargeLevel.Status = "OK"
	state.BatteryChargeLevel.Value = 64
	state.ChargingStatus.Status = "OK"
	state.ChargingStatus.Value = "IDLE"
	state.ElectricRange.Status = "ERROR"

	var got []connectedvehicle.EnergyState
	p := NewPoller(stubReader{state: state}, testVIN, 0)
	p.OnState = func(s connectedvehicle.EnergyState) { got = append(got, s) }
	p.pollOnce(context.Background())

	out := logs.String()
	if !strings.Contains(out, "battery_percent=64") || !strings.Contains(out, "charging_status=IDLE") {
		t.Errorf("log = %q", out)
	}
	if strings.Contains(out, "range=") {
		t.Errorf("invalid range logged: %q", out)
	}
	if len(got) != 1 {
		t.Errorf("OnState called %d times", len(got))
	}
}

func TestPollerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"revoked token", &volvoid.Error{Kind: volvoid.ErrInvalidGrant}, "authorize the vehicle again"},
		{"api key", &connectedvehicle.StatusError{StatusCode: 401}, "check volvo.api_key"},
		{"rate limit", &connectedvehicle.StatusError{StatusCode: 429}, "rate limit"},
		{"asleep", &connectedvehicle.StatusError{StatusCode: 404}, "vehicle unavailable"},
		{"other", errors.New("boom"), "fetching energy state failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			called := false
			p := NewPoller(stubReader{err: tt.err}, testVIN, 0)
			p.OnState = func(connectedvehicle.EnergyState) { called = true }
			p.pollOnce(context.Background())

			if !strings.Contains(logs.String(), tt.want) {
				t.Errorf("log = %q, want %q", logs.String(), tt.want)
			}
			if called {
				t.Error("OnState called on failure")
			}
		})
	}
}
