package models

import "strings"

type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleQuad       VehicleType = "quad"
)

// VehicleTypes lists the canonical vehicle types in counter order.
var VehicleTypes = []VehicleType{VehicleCar, VehicleMotorcycle, VehicleQuad}

// NormalizeVehicleType maps free-text input (canonical names or the
// Portuguese form labels) to a canonical type. Unrecognised input is a car.
func NormalizeVehicleType(raw string) VehicleType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mota", "moto", "motorcycle":
		return VehicleMotorcycle
	case "quad":
		return VehicleQuad
	case "jipe", "car":
		return VehicleCar
	default:
		return VehicleCar
	}
}

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCar, VehicleMotorcycle, VehicleQuad:
		return true
	}
	return false
}
