package chat

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(16)" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(200)" json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(16);not null;index" json:"sessionId"`
	UserID    uint64    `gorm:"not null;index" json:"-"`
	RoleID    *uint64   `gorm:"index" json:"roleId"` // set only for ai messages
	Sender    string    `gorm:"type:varchar(16);not null" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Message) TableName() string { return "chat_messages" }
