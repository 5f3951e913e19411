package models

import "time"

// SOSStatus defines the lifecycle state of an SOS alert.
type SOSStatus string

const (
	SOSActive    SOSStatus = "active"
	SOSResolved  SOSStatus = "resolved"
	SOSCancelled SOSStatus = "cancelled"
)

// SOSAlert is a persisted emergency alert. The recipient set is a
// snapshot taken at creation time: later changes to the social graph do
// not grow or shrink the audience of an alert already in flight.
type SOSAlert struct {
	BaseModel
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	Message   string    `gorm:"type:text" json:"message,omitempty"`
	PlaceName string    `gorm:"type:varchar(255)" json:"placeName,omitempty"`
	Status    SOSStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	Recipients []SOSRecipient `gorm:"foreignKey:AlertID" json:"recipients,omitempty"`
}

// SOSRecipient is one row of an alert's recipient snapshot.
type SOSRecipient struct {
	ID      uint `gorm:"primarykey" json:"-"`
	AlertID uint `gorm:"not null;index" json:"-"`
	UserID  uint `gorm:"not null;index" json:"userId"`
}

// RecipientIDs flattens the snapshot rows into a list of user IDs.
func (a *SOSAlert) RecipientIDs() []uint {
	ids := make([]uint, 0, len(a.Recipients))
	for _, r := range a.Recipients {
		ids = append(ids, r.UserID)
	}
	return ids
}

// TableName sets the table name for the SOSAlert model.
func (SOSAlert) TableName() string {
	return "sos_alerts"
}

// TableName sets the table name for the SOSRecipient model.
func (SOSRecipient) TableName() string {
	return "sos_alert_recipients"
}
