// Package commands declares every command the tracing service accepts, the
// result each handler returns, and the validators bound to them. Field names
// follow the original wire contract, which is also what validation failures
// report.
package commands

import "time"

const (
	NameCreateProfile        = "create_profile"
	NameUpdatePushToken      = "update_push_token"
	NameReportLocation       = "report_location"
	NameAddContacts          = "add_contacts"
	NameClearContactLocation = "clear_contact_location"
	NameExportContacts       = "export_contacts"
)

// All lists every command that must have a handler at startup.
func All() []string {
	return []string{
		NameCreateProfile,
		NameUpdatePushToken,
		NameReportLocation,
		NameAddContacts,
		NameClearContactLocation,
		NameExportContacts,
	}
}

// CreateProfileCommand registers a device and its push token.
type CreateProfileCommand struct {
	DeviceID  string `json:"DeviceId" validate:"required,max=128"`
	PushToken string `json:"PushToken" validate:"required,max=4096"`
	Locale    string `json:"Locale" validate:"omitempty,max=10"`
}

func (CreateProfileCommand) CommandName() string { return NameCreateProfile }

// CreateProfileResult carries the internal id the device uses in later
// commands, and the opaque id it may show or share.
type CreateProfileResult struct {
	ProfileID  uint32 `json:"ProfileId"`
	ExternalID string `json:"ExternalId"`
}

// UpdatePushTokenCommand replaces the push token of a registered device.
type UpdatePushTokenCommand struct {
	ProfileID uint32 `json:"ProfileId" validate:"required"`
	DeviceID  string `json:"DeviceId" validate:"required,max=128"`
	PushToken string `json:"PushToken" validate:"required,max=4096"`
}

func (UpdatePushTokenCommand) CommandName() string { return NameUpdatePushToken }

type UpdatePushTokenResult struct {
	ProfileID uint32 `json:"ProfileId"`
	Version   int64  `json:"Version"`
}

// ReportLocationCommand records where a profile's device currently is.
type ReportLocationCommand struct {
	ProfileID uint32  `json:"ProfileId" validate:"required"`
	DeviceID  string  `json:"DeviceId" validate:"required,max=128"`
	Latitude  float64 `json:"Latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"Longitude" validate:"gte=-180,lte=180"`
	Accuracy  int     `json:"Accuracy" validate:"gte=0,lte=100"`
}

func (ReportLocationCommand) CommandName() string { return NameReportLocation }

type ReportLocationResult struct {
	ContactID string `json:"ContactId"`
}

// ContactEntry is one encounter observed by the reporting device. The three
// location fields are either all set or all omitted.
type ContactEntry struct {
	SeenProfileID uint32   `json:"SeenProfileId" validate:"required"`
	Timestamp     int64    `json:"Timestamp" validate:"gt=0"`
	Duration      *int64   `json:"Duration" validate:"omitempty,gte=0"`
	Latitude      *float64 `json:"Latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64 `json:"Longitude" validate:"omitempty,gte=-180,lte=180"`
	Accuracy      *float64 `json:"Accuracy" validate:"omitempty,gte=0"`
}

// DurationValue converts the wire duration (seconds) into a time.Duration.
func (e ContactEntry) DurationValue() *time.Duration {
	if e.Duration == nil {
		return nil
	}
	d := time.Duration(*e.Duration) * time.Second
	return &d
}

// MaxContactsPerBatch bounds a single AddContactsCommand.
const MaxContactsPerBatch = 500

// AddContactsCommand uploads a batch of encounters recorded by one device.
type AddContactsCommand struct {
	ProfileID uint32         `json:"ProfileId" validate:"required"`
	DeviceID  string         `json:"DeviceId" validate:"required,max=128"`
	Contacts  []ContactEntry `json:"Contacts" validate:"required,min=1,max=500,dive"`
}

func (AddContactsCommand) CommandName() string { return NameAddContacts }

type AddContactsResult struct {
	ContactIDs []string `json:"ContactIds"`
}

// ClearContactLocationCommand redacts the location of a stored contact. It is
// issued by retention tooling with internal ids and has no validator.
type ClearContactLocationCommand struct {
	ProfileID uint32 `json:"ProfileId"`
	ContactID string `json:"ContactId"`
}

func (ClearContactLocationCommand) CommandName() string { return NameClearContactLocation }

type ClearContactLocationResult struct {
	ContactID string `json:"ContactId"`
	Version   int64  `json:"Version"`
}

// ExportContactsCommand publishes every record of a profile to object storage.
type ExportContactsCommand struct {
	ProfileID uint32 `json:"ProfileId" validate:"required"`
}

func (ExportContactsCommand) CommandName() string { return NameExportContacts }

type ExportContactsResult struct {
	ObjectKey   string    `json:"ObjectKey"`
	DownloadURL string    `json:"DownloadUrl"`
	Count       int       `json:"Count"`
	ExpiresAt   time.Time `json:"ExpiresAt"`
}
