// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGameRecord 归档的对局记录
type GormGameRecord struct {
	gorm.Model
	RoomCode   string                 `gorm:"index;not null"`
	Players    map[string]interface{} `gorm:"type:jsonb;not null"`
	FinalState map[string]interface{} `gorm:"type:jsonb;not null"`
	Outcome    string                 `gorm:"not null"`
	Duration   int                    `gorm:"default:0"` // 对局时长(秒)
}

// GormRoomSnapshot 房间状态快照
type GormRoomSnapshot struct {
	gorm.Model
	RoomCode string                 `gorm:"uniqueIndex;not null"`
	Phase    string                 `gorm:"not null"`
	Players  map[string]interface{} `gorm:"type:jsonb"`
}
