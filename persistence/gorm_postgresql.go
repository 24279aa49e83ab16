// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mbreuer/reaktor/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormGameRecord{}, &models.GormRoomSnapshot{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存对局记录
func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players, err := toJSONMap(map[string]interface{}{"players": record.Players})
	if err != nil {
		return err
	}
	finalState, err := toJSONMap(record.FinalState)
	if err != nil {
		return err
	}

	row := models.GormGameRecord{
		RoomCode:   record.RoomCode,
		Players:    players,
		FinalState: finalState,
		Outcome:    record.Outcome,
		Duration:   record.Duration,
	}
	return p.db.Create(&row).Error
}

// SaveRoomSnapshot 保存房间状态快照 (UPSERT)
func (p *GormPostgreSQL) SaveRoomSnapshot(roomCode, phase string, players interface{}) error {
	playersMap, err := toJSONMap(map[string]interface{}{"players": players})
	if err != nil {
		return err
	}

	var snapshot models.GormRoomSnapshot
	result := p.db.Where("room_code = ?", roomCode).First(&snapshot)
	if result.Error == gorm.ErrRecordNotFound {
		snapshot = models.GormRoomSnapshot{
			RoomCode: roomCode,
			Phase:    phase,
			Players:  playersMap,
		}
		return p.db.Create(&snapshot).Error
	} else if result.Error != nil {
		return result.Error
	}

	return p.db.Model(&snapshot).Updates(map[string]interface{}{
		"phase":   phase,
		"players": playersMap,
	}).Error
}

// RecentGameRecords 查询最近的对局记录
func (p *GormPostgreSQL) RecentGameRecords(limit int) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	if err := p.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.GameRecord{
			RoomCode:  row.RoomCode,
			Outcome:   row.Outcome,
			Duration:  row.Duration,
			CreatedAt: row.CreatedAt,
		})
	}
	return records, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// toJSONMap 将任意结构转成jsonb可存储的map
func toJSONMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
