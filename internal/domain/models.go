// Package domain defines the persistence models for the chat subsystem of the
// job portal: directory users, direct messages between two users, and the
// per-viewer hide markers that implement "delete conversation for me". These
// types are mapped with GORM and shared by the repository, service and
// transport layers.
package domain

import "time"

// Roles a directory user may hold.
const (
	RoleStudent   = "student"
	RoleRecruiter = "recruiter"
)

// User is a directory entry. The chat subsystem only reads it: to resolve the
// receiver of a message, to list conversation peers and to attach display data
// to history items.
type User struct {
	ID           string    `json:"id"            gorm:"type:varchar(64);primaryKey"`
	Fullname     string    `json:"fullname"      gorm:"type:varchar(255);not null"`
	Email        string    `json:"email"         gorm:"type:varchar(255);uniqueIndex"`
	Role         string    `json:"role"          gorm:"type:varchar(16);not null;default:'student'"`
	ProfilePhoto string    `json:"profile_photo" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Card returns the display subset of the user attached to messages.
func (u User) Card() *UserCard {
	return &UserCard{ID: u.ID, Fullname: u.Fullname, ProfilePhoto: u.ProfilePhoto}
}

// UserCard is the display record joined onto a message sender.
type UserCard struct {
	ID           string `json:"id"`
	Fullname     string `json:"fullname"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
}

// Message is a direct message from SenderID to ReceiverID.
//
// IsRead only ever moves from false to true, and only for the receiver's side
// of a conversation. Visibility is per viewer: see MessageHide.
type Message struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string     `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_msgs_pair,priority:1"`
	ReceiverID string     `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_msgs_pair,priority:2;index:idx_msgs_unread,priority:1"`
	Text       string     `json:"text"        gorm:"type:text;not null"`
	IsRead     bool       `json:"is_read"     gorm:"not null;default:false;index:idx_msgs_unread,priority:2"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"  gorm:"index:idx_msgs_pair,priority:3"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Sender is filled by the service layer from the directory.
	Sender *UserCard `json:"sender,omitempty" gorm:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Involves reports whether userID is one of the two parties.
func (m Message) Involves(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

// MessageHide records that UserID removed MessageID from their own view. The
// other party's view and all read flags are unaffected.
type MessageHide struct {
	MessageID string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`

	Message Message `gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MessageHide.
func (MessageHide) TableName() string { return "message_hides" }

// Peer is one row of the conversation sidebar: a directory user and the
// number of messages they sent to the viewer that are still unread.
type Peer struct {
	User
	UnreadCount int64 `json:"unread_count"`
}
