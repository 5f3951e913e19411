package models

import "time"

// User represents an account in the system.
type User struct {
	BaseModel
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	Email        string `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	Nickname     string `gorm:"type:varchar(100)" json:"nickname,omitempty"`
	AvatarURL    string `gorm:"type:varchar(255)" json:"avatarUrl,omitempty"`
	IsActive     bool   `gorm:"not null;default:true" json:"isActive"`

	// ShareWithEveryone opts the user into the nearby-stranger channel,
	// both as an SOS sender (alerts reach nearby sharers) and as a
	// recipient (counted in other sharers' nearby snapshots).
	ShareWithEveryone bool `gorm:"not null;default:false" json:"shareWithEveryone"`

	// Last known location, updated by the mobile client. Used only for
	// the nearby-recipient computation of SOS alerts.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// UserBasicInfo holds minimal public information about a user,
// used when annotating friend lists and pending requests.
type UserBasicInfo struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// TableName sets the table name for the User model.
func (User) TableName() string {
	return "users"
}
