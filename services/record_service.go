// services/record_service.go
package services

import (
	"time"

	"github.com/samber/lo"

	"github.com/mbreuer/reaktor/logger"
	"github.com/mbreuer/reaktor/models"
	"github.com/mbreuer/reaktor/persistence"
	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/sim"
)

// RecordService archives finished games. Persistence is optional: with no
// database configured every call is a cheap no-op, and a failing write is
// logged but never surfaces to gameplay.
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// SaveFinishedGame archives a room that is being destroyed. Rooms whose game
// never left setup produce no record.
func (s *RecordService) SaveFinishedGame(r *room.Room) {
	if s == nil || s.db == nil {
		return
	}
	if r.State == nil || r.State.Phase == sim.PhaseSetup {
		return
	}

	record := &models.GameRecord{
		RoomCode:   r.Code,
		Players:    rosterInfos(r),
		Outcome:    string(r.State.Phase),
		FinalState: r.State.Clone(),
		CreatedAt:  time.Now(),
	}
	if r.State.StartTime != nil {
		end := time.Now()
		if r.State.EndTime != nil {
			end = *r.State.EndTime
		}
		record.Duration = int(end.Sub(*r.State.StartTime).Seconds())
	}

	if err := s.db.SaveGameRecord(record); err != nil {
		logger.Log.Errorf("Failed to save game record for room %s: %v", r.Code, err)
	}
}

// SaveSnapshot persists the room's current phase and roster.
func (s *RecordService) SaveSnapshot(r *room.Room) {
	if s == nil || s.db == nil {
		return
	}
	if err := s.db.SaveRoomSnapshot(r.Code, string(r.State.Phase), rosterInfos(r)); err != nil {
		logger.Log.Errorf("Failed to save snapshot for room %s: %v", r.Code, err)
	}
}

// RecentRecords returns the latest archived games, newest first.
func (s *RecordService) RecentRecords(limit int) ([]models.GameRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return s.db.RecentGameRecords(limit)
}

func rosterInfos(r *room.Room) []models.PlayerInfo {
	return lo.Map(r.Roster(), func(p *room.Player, _ int) models.PlayerInfo {
		return models.PlayerInfo{ID: p.SessionID, Nickname: p.Nickname, Role: p.Role}
	})
}
