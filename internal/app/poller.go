package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/florianilch/ex30link/internal/connectedvehicle"
	"github.com/florianilch/ex30link/internal/poll"
	"github.com/florianilch/ex30link/internal/volvoid"
)

// EnergyStateReader fetches the energy state of a vehicle.
type EnergyStateReader interface {
	EnergyState(ctx context.Context, vin string) (connectedvehicle.EnergyState, error)
}

// Poller periodically fetches and logs the energy state of one vehicle.
type Poller struct {
	client   EnergyStateReader
	vin      string
	interval time.Duration

	// OnState, if set, receives every successfully fetched state.
	OnState func(connectedvehicle.EnergyState)
}

// NewPoller creates a Poller fetching vin every interval.
func NewPoller(client EnergyStateReader, vin string, interval time.Duration) *Poller {
	return &Poller{client: client, vin: vin, interval: interval}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.InfoContext(ctx, "polling vehicle", "vin", p.vin, "interval", p.interval)
	poll.Every(ctx, p.interval, p.pollOnce)
}

func (p *Poller) pollOnce(ctx context.Context) {
	state, err := p.client.EnergyState(ctx, p.vin)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case errors.Is(err, volvoid.ErrInvalidGrant):
		slog.ErrorContext(ctx, "refresh token rejected, authorize the vehicle again", "vin", p.vin, "error", err)
		return
	case errors.Is(err, connectedvehicle.ErrUnauthorized):
		slog.ErrorContext(ctx, "vehicle API rejected credentials, check volvo.api_key", "vin", p.vin, "error", err)
		return
	case errors.Is(err, connectedvehicle.ErrRateLimited):
		slog.WarnContext(ctx, "vehicle API rate limit reached", "vin", p.vin)
		return
	case errors.Is(err, connectedvehicle.ErrVehicleUnavailable):
		slog.WarnContext(ctx, "vehicle unavailable", "vin", p.vin, "error", err)
		return
	default:
		slog.WarnContext(ctx, "fetching energy state failed", "vin", p.vin, "error", err)
		return
	}

	attrs := []any{"vin", p.vin}
	if state.BatteryChargeLevel.OK() {
		attrs = append(attrs, "battery_percent", state.BatteryChargeLevel.Value)
	}
	if state.ElectricRange.OK() {
		attrs = append(attrs, "range", state.ElectricRange.Value, "range_unit", state.ElectricRange.Unit)
	}
	if state.ChargingStatus.OK() {
		attrs = append(attrs, "charging_status", state.ChargingStatus.Value)
	}
	slog.InfoContext(ctx, "energy state", attrs...)

	if p.OnState != nil {
		p.OnState(state)
	}
}
