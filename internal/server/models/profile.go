package models

import "errors"

var ErrMissingProfileID = errors.New("profile id is required")

// Profile is a participant identity bound to one device. The numeric id never
// leaves the server; clients only see its obfuscated form.
type Profile struct {
	id        uint32
	deviceID  string
	pushToken string
	locale    string
	createdAt int64
	version   int64
}

// NewProfile builds a profile for an id allocated by the profile repository.
func NewProfile(id uint32, deviceID, pushToken, locale string, createdAt int64) (*Profile, error) {
	if id == 0 {
		return nil, ErrMissingProfileID
	}
	return &Profile{
		id:        id,
		deviceID:  deviceID,
		pushToken: pushToken,
		locale:    locale,
		createdAt: createdAt,
	}, nil
}

func (p *Profile) ID() uint32           { return p.id }
func (p *Profile) DeviceID() string     { return p.deviceID }
func (p *Profile) PushToken() string    { return p.pushToken }
func (p *Profile) Locale() string       { return p.locale }
func (p *Profile) CreatedAt() int64     { return p.createdAt }
func (p *Profile) Version() int64       { return p.version }
func (p *Profile) PartitionKey() string { return PartitionKey(p.id) }

// UpdatePushToken replaces the push token after the device re-registers with
// the messaging provider.
func (p *Profile) UpdatePushToken(token string) { p.pushToken = token }

// SetVersion records the concurrency token assigned by a repository.
func (p *Profile) SetVersion(v int64) { p.version = v }

// ProfileRecord is the persisted shape of a Profile.
type ProfileRecord struct {
	ID           uint32 `json:"id"`
	PartitionKey string `json:"partitionKey"`
	DeviceID     string `json:"deviceId"`
	PushToken    string `json:"pushToken"`
	Locale       string `json:"locale"`
	CreatedAt    int64  `json:"createdAt"`
	Version      int64  `json:"version"`
}

func (p *Profile) Record() ProfileRecord {
	return ProfileRecord{
		ID:           p.id,
		PartitionKey: p.PartitionKey(),
		DeviceID:     p.deviceID,
		PushToken:    p.pushToken,
		Locale:       p.locale,
		CreatedAt:    p.createdAt,
		Version:      p.version,
	}
}

func ProfileFromRecord(rec ProfileRecord) (*Profile, error) {
	p, err := NewProfile(rec.ID, rec.DeviceID, rec.PushToken, rec.Locale, rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.version = rec.Version
	return p, nil
}
