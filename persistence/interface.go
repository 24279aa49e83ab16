// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/mbreuer/reaktor/models"
)

// Database 数据库接口
// Write-only telemetry store: finished games and room snapshots go in,
// nothing is ever loaded back into the live registry.
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	SaveRoomSnapshot(roomCode, phase string, players interface{}) error
	RecentGameRecords(limit int) ([]models.GameRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
