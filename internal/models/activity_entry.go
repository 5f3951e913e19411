package models

// ActivityEntry is one row of a user's activity feed. An event visible
// to several users is stored as one row per viewer, so the feed read is
// a single indexed query.
type ActivityEntry struct {
	BaseModel
	UserID  uint   `gorm:"not null;index" json:"userId"` // the viewer
	ActorID uint   `gorm:"not null" json:"actorId"`
	Type    string `gorm:"type:varchar(50);not null" json:"type"`
	Message string `gorm:"type:text;not null" json:"message"`
}

// TableName sets the table name for the ActivityEntry model.
func (ActivityEntry) TableName() string {
	return "activity_entries"
}
