// Package models defines the domain entities of the tracing service. Entities
// keep their state unexported: every attribute is read through an accessor
// and only the operations declared here may change it.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ContactKind discriminates proximity encounters from self-reported locations.
// It is persisted as the record's type.
type ContactKind string

const (
	KindProximity ContactKind = "proximity"
	KindLocation  ContactKind = "location"
)

var (
	ErrNegativeDuration = errors.New("duration must not be negative")
	ErrMissingID        = errors.New("contact id is required")
	ErrUnknownKind      = errors.New("unknown contact kind")
)

// Contact is one observed encounter between two profiles, or a location
// report when the kind is KindLocation.
//
// Invariants:
//   - id, profileID and seenProfileID are fixed at construction
//   - duration, when present, is non-negative
//   - location is all-or-nothing; ClearLocation is the only mutation
type Contact struct {
	id             uuid.UUID
	kind           ContactKind
	profileID      uint32
	sourceDeviceID string
	seenProfileID  uint32
	timestamp      int64
	duration       *time.Duration
	location       Location
	version        int64
}

// NewContact builds a proximity record with a freshly assigned id.
func NewContact(profileID uint32, sourceDeviceID string, seenProfileID uint32, timestamp int64, duration *time.Duration, location Location) (*Contact, error) {
	if duration != nil && *duration < 0 {
		return nil, ErrNegativeDuration
	}
	var d *time.Duration
	if duration != nil {
		v := *duration
		d = &v
	}
	return &Contact{
		id:             uuid.New(),
		kind:           KindProximity,
		profileID:      profileID,
		sourceDeviceID: sourceDeviceID,
		seenProfileID:  seenProfileID,
		timestamp:      timestamp,
		duration:       d,
		location:       location,
	}, nil
}

// NewLocationReport builds a record of a profile reporting its own position.
// Location reports have no counterpart profile and no duration.
func NewLocationReport(profileID uint32, deviceID string, timestamp int64, location Location) *Contact {
	return &Contact{
		id:             uuid.New(),
		kind:           KindLocation,
		profileID:      profileID,
		sourceDeviceID: deviceID,
		timestamp:      timestamp,
		location:       location,
	}
}

func (c *Contact) ID() uuid.UUID          { return c.id }
func (c *Contact) Kind() ContactKind      { return c.kind }
func (c *Contact) ProfileID() uint32      { return c.profileID }
func (c *Contact) SourceDeviceID() string { return c.sourceDeviceID }
func (c *Contact) SeenProfileID() uint32  { return c.seenProfileID }
func (c *Contact) Timestamp() int64       { return c.timestamp }
func (c *Contact) Location() Location     { return c.location }
func (c *Contact) Version() int64         { return c.version }

// Duration returns the encounter duration and whether it is known.
func (c *Contact) Duration() (time.Duration, bool) {
	if c.duration == nil {
		return 0, false
	}
	return *c.duration, true
}

// PartitionKey routes the contact to its owner's partition.
func (c *Contact) PartitionKey() string { return PartitionKey(c.profileID) }

// ClearLocation redacts latitude, longitude and accuracy together. Calling it
// on a contact without a location is a no-op.
func (c *Contact) ClearLocation() {
	c.location = NoLocation()
}

// SetVersion records the concurrency token assigned by a repository.
func (c *Contact) SetVersion(v int64) { c.version = v }

// PartitionKey derives the storage partition of everything a profile owns.
func PartitionKey(profileID uint32) string {
	return strconv.FormatUint(uint64(profileID), 10)
}

// ContactRecord is the persisted shape of a Contact.
type ContactRecord struct {
	ID             string   `json:"id"`
	PartitionKey   string   `json:"partitionKey"`
	Type           string   `json:"type"`
	ProfileID      uint32   `json:"profileId"`
	SourceDeviceID string   `json:"sourceDeviceId"`
	SeenProfileID  uint32   `json:"seenProfileId"`
	Timestamp      int64    `json:"timestamp"`
	Duration       *int64   `json:"duration"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Accuracy       *float64 `json:"accuracy"`
	Version        int64    `json:"version"`
}

// Record converts the contact into its persisted shape. Duration is stored in
// whole seconds.
func (c *Contact) Record() ContactRecord {
	rec := ContactRecord{
		ID:             c.id.String(),
		PartitionKey:   c.PartitionKey(),
		Type:           string(c.kind),
		ProfileID:      c.profileID,
		SourceDeviceID: c.sourceDeviceID,
		SeenProfileID:  c.seenProfileID,
		Timestamp:      c.timestamp,
		Version:        c.version,
	}
	if c.duration != nil {
		secs := int64(c.duration.Seconds())
		rec.Duration = &secs
	}
	rec.Latitude, rec.Longitude, rec.Accuracy = c.location.Nullable()
	return rec
}

// ContactFromRecord rehydrates a persisted contact. A record that violates an
// entity invariant is reported as an error rather than silently repaired.
func ContactFromRecord(rec ContactRecord) (*Contact, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingID, err)
	}
	kind := ContactKind(rec.Type)
	if kind != KindProximity && kind != KindLocation {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Type)
	}
	loc, err := LocationFromNullable(rec.Latitude, rec.Longitude, rec.Accuracy)
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", rec.ID, err)
	}
	var d *time.Duration
	if rec.Duration != nil {
		if *rec.Duration < 0 {
			return nil, fmt.Errorf("contact %s: %w", rec.ID, ErrNegativeDuration)
		}
		v := time.Duration(*rec.Duration) * time.Second
		d = &v
	}
	return &Contact{
		id:             id,
		kind:           kind,
		profileID:      rec.ProfileID,
		sourceDeviceID: rec.SourceDeviceID,
		seenProfileID:  rec.SeenProfileID,
		timestamp:      rec.Timestamp,
		duration:       d,
		location:       loc,
		version:        rec.Version,
	}, nil
}
