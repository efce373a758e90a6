package db

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cowsettle/gpv2core/pkg/rater"
)

// RatingRecord is the database model for a single rated settlement outcome.
type RatingRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"index;not null"`
	SolutionID     int       `gorm:"not null;comment:solver-declared solution id"`
	Surplus        string    `gorm:"type:varchar(78);not null;comment:big.Int wei as string"`
	EarnedFees     string    `gorm:"type:varchar(78);not null;comment:big.Int wei as string"`
	GasEstimate    string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	ObjectiveValue string    `gorm:"type:varchar(128);not null;comment:big.Rat as decimal string"`
	Score          string    `gorm:"type:varchar(78);not null;comment:big.Int wei as string"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (RatingRecord) TableName() string {
	return "rating_history"
}

// MySQLRatingHistory persists rated-settlement outcomes via GORM and MySQL,
// giving operators a queryable audit trail of what the rater scored and why.
type MySQLRatingHistory struct {
	db *gorm.DB
}

// NewMySQLRatingHistory opens a MySQL connection and migrates the
// rating_history table. dsn format:
// "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLRatingHistory(dsn string) (*MySQLRatingHistory, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewMySQLRatingHistoryWithDB(db)
}

// NewMySQLRatingHistoryWithDB wraps an existing GORM DB instance, migrating
// the rating_history table on it.
func NewMySQLRatingHistoryWithDB(db *gorm.DB) (*MySQLRatingHistory, error) {
	if err := db.AutoMigrate(&RatingRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLRatingHistory{db: db}, nil
}

// RecordRating persists one successfully rated settlement.
func (r *MySQLRatingHistory) RecordRating(rating rater.RatedSettlement) error {
	record := RatingRecord{
		Timestamp:      time.Now(),
		SolutionID:     rating.ID,
		Surplus:        bigIntToString(rating.Surplus),
		EarnedFees:     bigIntToString(rating.EarnedFees),
		GasEstimate:    bigIntToString(rating.GasEstimate),
		ObjectiveValue: bigRatToString(rating.ObjectiveValue),
		Score:          bigIntToString(rating.Score),
	}

	result := r.db.Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to record rating: %w", result.Error)
	}
	return nil
}

// GetDB returns the underlying GORM DB instance for advanced queries.
func (r *MySQLRatingHistory) GetDB() *gorm.DB {
	return r.db
}

// Close closes the database connection.
func (r *MySQLRatingHistory) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

// bigIntToString safely converts *big.Int to string, handling nil values.
func bigIntToString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// bigRatToString safely converts *big.Rat to a decimal string, handling nil
// values.
func bigRatToString(value *big.Rat) string {
	if value == nil {
		return "0"
	}
	return value.FloatString(18)
}

// GetLatestRating retrieves the most recently recorded rating.
func (r *MySQLRatingHistory) GetLatestRating() (*RatingRecord, error) {
	var record RatingRecord
	result := r.db.Order("timestamp DESC").First(&record)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get latest rating: %w", result.Error)
	}
	return &record, nil
}

// GetRatingsByTimeRange retrieves ratings within a time range.
func (r *MySQLRatingHistory) GetRatingsByTimeRange(start, end time.Time) ([]RatingRecord, error) {
	var records []RatingRecord
	result := r.db.Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get ratings by time range: %w", result.Error)
	}
	return records, nil
}

// GetRatingsBySolutionID retrieves all ratings recorded for a given solver
// solution id.
func (r *MySQLRatingHistory) GetRatingsBySolutionID(solutionID int) ([]RatingRecord, error) {
	var records []RatingRecord
	result := r.db.Where("solution_id = ?", solutionID).
		Order("timestamp ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get ratings by solution id: %w", result.Error)
	}
	return records, nil
}

// CountRatings returns the total number of ratings in the database.
func (r *MySQLRatingHistory) CountRatings() (int64, error) {
	var count int64
	result := r.db.Model(&RatingRecord{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", result.Error)
	}
	return count, nil
}
