package dto

import (
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	"github.com/askhat-b/taxi-dispatch/pkg/validator"
)

// CoordinateUpdateReq carries a driver position. Pointers distinguish a
// missing field from a genuine zero coordinate.
type CoordinateUpdateReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *CoordinateUpdateReq) Validate(v *validator.Validator) {
	v.Check(r.Latitude != nil, "latitude", "must be provided")
	if r.Latitude != nil {
		v.Check(*r.Latitude >= -90 && *r.Latitude <= 90, "latitude", "must be between -90 and 90")
	}

	v.Check(r.Longitude != nil, "longitude", "must be provided")
	if r.Longitude != nil {
		v.Check(*r.Longitude >= -180 && *r.Longitude <= 180, "longitude", "must be between -180 and 180")
	}
}

type FavoriteDriverRequest struct {
	DriverID string `json:"driver_id"`
}

func (r *FavoriteDriverRequest) Validate(v *validator.Validator) {
	v.Check(r.DriverID != "", "driver_id", "must be provided")
	if r.DriverID != "" {
		_, err := uuid.Parse(r.DriverID)
		v.Check(err == nil, "driver_id", "must be a valid UUID")
	}
}
