package models

import "errors"

// ErrPartialLocation is returned when only some of latitude, longitude and
// accuracy are supplied.
var ErrPartialLocation = errors.New("latitude, longitude and accuracy must be set together")

// Location is an optional position fix. The zero value is "no location"; a
// present Location always carries all three coordinates.
type Location struct {
	latitude  float64
	longitude float64
	accuracy  float64
	present   bool
}

// NewLocation returns a present Location.
func NewLocation(latitude, longitude, accuracy float64) Location {
	return Location{latitude: latitude, longitude: longitude, accuracy: accuracy, present: true}
}

// NoLocation returns an absent Location.
func NoLocation() Location { return Location{} }

// LocationFromNullable builds a Location from three independently nullable
// values, as they arrive on the wire or from storage.
func LocationFromNullable(latitude, longitude, accuracy *float64) (Location, error) {
	switch {
	case latitude == nil && longitude == nil && accuracy == nil:
		return NoLocation(), nil
	case latitude != nil && longitude != nil && accuracy != nil:
		return NewLocation(*latitude, *longitude, *accuracy), nil
	default:
		return Location{}, ErrPartialLocation
	}
}

func (l Location) Present() bool      { return l.present }
func (l Location) Latitude() float64  { return l.latitude }
func (l Location) Longitude() float64 { return l.longitude }
func (l Location) Accuracy() float64  { return l.accuracy }

// Nullable is the inverse of LocationFromNullable: all three pointers are nil
// when the location is absent, and all three are set otherwise.
func (l Location) Nullable() (latitude, longitude, accuracy *float64) {
	if !l.present {
		return nil, nil, nil
	}
	lat, lon, acc := l.latitude, l.longitude, l.accuracy
	return &lat, &lon, &acc
}
