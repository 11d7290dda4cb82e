package connectedvehicle

import "time"

// Vehicle is an entry of the vehicle list.
type Vehicle struct {
	VIN string `json:"vin"`
}

type vehiclesResponse struct {
	Data []Vehicle `json:"data"`
}

// Value is a single energy state reading. Status is "OK" when Value is valid and
// "ERROR" when the vehicle could not report it.
type Value[T any] struct {
	Status    string    `json:"status"`
	Value     T         `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Error     *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// OK reports whether the reading is valid.
func (v Value[T]) OK() bool {
	return v.Status == "OK"
}

// EnergyState is the battery and charging state of an electric vehicle.
type EnergyState struct {
	BatteryChargeLevel       Value[float64] `json:"batteryChargeLevel"`
	ElectricRange            Value[int]     `json:"electricRange"`
	ChargerConnectionStatus  Value[string]  `json:"chargerConnectionStatus"`
	ChargingStatus           Value[string]  `json:"chargingStatus"`
	ChargingType             Value[string]  `json:"chargingType"`
	ChargerPowerStatus       Value[string]  `json:"chargerPowerStatus"`
	TargetBatteryChargeLevel Value[int]     `json:"targetBatteryChargeLevel"`
	ChargingPower            Value[int]     `json:"chargingPower"`
	ChargingCurrentLimit     Value[int]     `json:"chargingCurrentLimit"`

	EstimatedChargingTimeToTarget Value[int] `json:"estimatedChargingTimeToTargetBatteryChargeLevel"`
}
