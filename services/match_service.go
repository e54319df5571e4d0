// services/match_service.go
package services

import (
	"gorm.io/gorm"

	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/persistence"
	"github.com/wfunc/duelserver/rating"
)

// MatchService 结算对决：计算评分变动并持久化记录
type MatchService struct {
	db persistence.Database
}

func NewMatchService(db persistence.Database) *MatchService {
	return &MatchService{db: db}
}

// RecordResult persists a finished duel and applies the Elo update in one
// transaction. rec.User1ID is the winner, rec.User2ID the loser. Returns
// the rating changes for the broadcast.
func (s *MatchService) RecordResult(rec *models.MatchRecord) ([]models.RatingChange, error) {
	winner, err := s.db.EnsureUser(rec.User1ID, "")
	if err != nil {
		return nil, err
	}
	loser, err := s.db.EnsureUser(rec.User2ID, "")
	if err != nil {
		return nil, err
	}

	newWinner, newLoser := rating.Elo(winner.Rating, loser.Rating, 1.0)
	changes := []models.RatingChange{
		{UserID: rec.User1ID, OldRating: winner.Rating, NewRating: newWinner},
		{UserID: rec.User2ID, OldRating: loser.Rating, NewRating: newLoser},
	}
	rec.Ratings = changes

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := persistence.CreateMatchRecordTx(tx, rec); err != nil {
			return err
		}
		if err := tx.Model(&models.GormUser{}).
			Where("user_id = ?", rec.User1ID).
			Updates(map[string]interface{}{
				"rating": newWinner,
				"wins":   gorm.Expr("wins + 1"),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.GormUser{}).
			Where("user_id = ?", rec.User2ID).
			Updates(map[string]interface{}{
				"rating": newLoser,
				"losses": gorm.Expr("losses + 1"),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}
