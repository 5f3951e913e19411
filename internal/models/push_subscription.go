package models

// PushSubscription maps a user to a mobile push token. A user may hold
// several (one per installed device); the delivery gateway only reads
// the active ones.
type PushSubscription struct {
	BaseModel
	UserID   uint   `gorm:"not null;uniqueIndex:idx_push_user_token" json:"userId"`
	Token    string `gorm:"type:varchar(512);not null;uniqueIndex:idx_push_user_token" json:"token"`
	Platform string `gorm:"type:varchar(20)" json:"platform,omitempty"`
	IsActive bool   `gorm:"not null;default:true" json:"isActive"`
}

// TableName sets the table name for the PushSubscription model.
func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
