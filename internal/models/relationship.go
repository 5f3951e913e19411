package models

// RelationshipStatus defines the lifecycle state of a friend relationship.
type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipAccepted RelationshipStatus = "accepted"
	RelationshipRejected RelationshipStatus = "rejected"
	RelationshipBlocked  RelationshipStatus = "blocked"
)

// FriendRelationship is the single durable record for a pair of users.
// At most one record exists per unordered pair; the uniqueness constraint
// is on the ordered pair, so lookups must check both orderings. A rejected
// record is reopened (direction re-assigned) rather than duplicated when
// either side sends a fresh request.
type FriendRelationship struct {
	BaseModel
	RequesterID uint               `gorm:"not null;uniqueIndex:idx_relationship_pair" json:"requesterId"`
	RecipientID uint               `gorm:"not null;uniqueIndex:idx_relationship_pair" json:"recipientId"`
	Status      RelationshipStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Message     string             `gorm:"type:text" json:"message,omitempty"`
}

// Involves reports whether the given user is one of the two participants.
func (r *FriendRelationship) Involves(userID uint) bool {
	return r.RequesterID == userID || r.RecipientID == userID
}

// OtherParty returns the participant that is not the given user.
func (r *FriendRelationship) OtherParty(userID uint) uint {
	if r.RequesterID == userID {
		return r.RecipientID
	}
	return r.RequesterID
}

// FriendView is the read projection returned by the friends list: the
// friend's public info plus state derived from the caller's perspective.
type FriendView struct {
	Friend         UserBasicInfo `json:"friend"`
	RelationshipID uint          `json:"relationshipId"`
	IsRequester    bool          `json:"isRequester"`
	IsOnline       bool          `json:"isOnline"`
}

// RequestView is the read projection for a pending request, annotated
// with the counterpart's public info.
type RequestView struct {
	RequestID   uint          `json:"requestId"`
	Counterpart UserBasicInfo `json:"counterpart"`
	Message     string        `json:"message,omitempty"`
	SentByMe    bool          `json:"sentByMe"`
}

// TableName sets the table name for the FriendRelationship model.
func (FriendRelationship) TableName() string {
	return "friend_relationships"
}
