// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/duelserver/models"
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
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
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
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormUser{},
		&models.GormMatch{},
		&models.GormTournament{},
		&models.GormParticipation{},
	)
}

// EnsureUser 按user_id查找玩家，不存在则以初始评分创建
func (p *GormPostgreSQL) EnsureUser(userID, name string) (*models.GormUser, error) {
	var user models.GormUser
	result := p.db.Where("user_id = ?", userID).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		user = models.GormUser{
			UserID: userID,
			Name:   name,
			Rating: models.DefaultRating,
		}
		if err := p.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	} else if result.Error != nil {
		return nil, result.Error
	}

	if name != "" && name != user.Name {
		user.Name = name
		if err := p.db.Model(&user).Update("name", name).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (p *GormPostgreSQL) GetUserRating(userID string) (int, error) {
	var user models.GormUser
	if err := p.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.DefaultRating, nil
		}
		return 0, err
	}
	return user.Rating, nil
}

func (p *GormPostgreSQL) UpdateUserRating(userID string, rating int) error {
	return p.db.Model(&models.GormUser{}).
		Where("user_id = ?", userID).
		Update("rating", rating).Error
}

// GetPlayerStats 获取玩家统计信息
func (p *GormPostgreSQL) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	var user models.GormUser
	if err := p.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var total int64
	if err := p.db.Model(&models.GormMatch{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&total).Error; err != nil {
		return nil, err
	}

	return &models.PlayerStats{
		UserID:     user.UserID,
		Name:       user.Name,
		Rating:     user.Rating,
		TotalGames: int(total),
		Wins:       user.Wins,
		Losses:     user.Losses,
	}, nil
}

// CreateMatchRecord 保存对决记录
func (p *GormPostgreSQL) CreateMatchRecord(rec *models.MatchRecord) error {
	match := matchFromRecord(rec)
	return p.db.Create(match).Error
}

// CreateMatchRecordTx is the transactional variant used by the match service.
func CreateMatchRecordTx(tx *gorm.DB, rec *models.MatchRecord) error {
	return tx.Create(matchFromRecord(rec)).Error
}

func matchFromRecord(rec *models.MatchRecord) *models.GormMatch {
	match := &models.GormMatch{
		DuelID:       rec.DuelID,
		TournamentID: rec.TournamentID,
		ProblemID:    rec.ProblemID,
		User1ID:      rec.User1ID,
		User2ID:      rec.User2ID,
		WinnerUserID: rec.WinnerUserID,
		Forfeit:      rec.Forfeit,
		Duration:     rec.Duration,
	}
	for _, rc := range rec.Ratings {
		switch rc.UserID {
		case rec.User1ID:
			match.User1RatingBefore = rc.OldRating
			match.User1RatingAfter = rc.NewRating
		case rec.User2ID:
			match.User2RatingBefore = rc.OldRating
			match.User2RatingAfter = rc.NewRating
		}
	}
	return match
}

func (p *GormPostgreSQL) GetRecentMatches(userID string, limit int) ([]models.GormMatch, error) {
	var matches []models.GormMatch
	err := p.db.Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&matches).Error
	return matches, err
}

// CreateTournament 创建赛事记录
func (p *GormPostgreSQL) CreateTournament(t *models.Tournament) error {
	row := models.GormTournament{
		TournamentID:    t.ID,
		Name:            t.Name,
		OrganizerID:     t.OrganizerID,
		Status:          t.Status,
		MaxParticipants: t.MaxParticipants,
		Platform:        t.Platform,
		ProblemIDs:      pq.StringArray(t.ProblemIDs),
	}
	return p.db.Create(&row).Error
}

func (p *GormPostgreSQL) GetTournament(id string) (*models.Tournament, error) {
	var row models.GormTournament
	if err := p.db.Where("tournament_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.Tournament{
		ID:              row.TournamentID,
		Name:            row.Name,
		OrganizerID:     row.OrganizerID,
		Status:          row.Status,
		MaxParticipants: row.MaxParticipants,
		Platform:        row.Platform,
		ProblemIDs:      []string(row.ProblemIDs),
		CreatedAt:       row.CreatedAt,
	}, nil
}

func (p *GormPostgreSQL) SetTournamentStatus(id, status string) error {
	return p.db.Model(&models.GormTournament{}).
		Where("tournament_id = ?", id).
		Update("status", status).Error
}

// CreateOrReactivateParticipation 创建参赛记录，存在则重新激活
func (p *GormPostgreSQL) CreateOrReactivateParticipation(tournamentID, userID string) error {
	var row models.GormParticipation
	result := p.db.Where("tournament_id = ? AND user_id = ?", tournamentID, userID).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormParticipation{
			TournamentID: tournamentID,
			UserID:       userID,
			Active:       true,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	return p.db.Model(&row).Update("active", true).Error
}

func (p *GormPostgreSQL) DeactivateParticipation(tournamentID, userID string) error {
	return p.db.Model(&models.GormParticipation{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Update("active", false).Error
}

func (p *GormPostgreSQL) HasParticipation(tournamentID, userID string) (bool, error) {
	var count int64
	err := p.db.Model(&models.GormParticipation{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Count(&count).Error
	return count > 0, err
}

func (p *GormPostgreSQL) CountActiveParticipants(tournamentID string) (int, error) {
	var count int64
	err := p.db.Model(&models.GormParticipation{}).
		Where("tournament_id = ? AND active = ?", tournamentID, true).
		Count(&count).Error
	return int(count), err
}

// Transaction 事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
