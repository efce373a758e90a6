package db

import (
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/cowsettle/gpv2core/pkg/rater"
)

func newRatingHistoryWithMock(t *testing.T) (*MySQLRatingHistory, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &MySQLRatingHistory{db: gormDB}, mock
}

func TestMySQLRatingHistory_RecordRating(t *testing.T) {
	history, mock := newRatingHistoryWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `rating_history`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := history.RecordRating(rater.RatedSettlement{
		ID:             7,
		Surplus:        big.NewInt(1000),
		EarnedFees:     big.NewInt(50),
		GasEstimate:    big.NewInt(90000),
		ObjectiveValue: big.NewRat(950, 1),
		Score:          big.NewInt(900),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBigIntToString(t *testing.T) {
	assert.Equal(t, "0", bigIntToString(nil))
	assert.Equal(t, "123", bigIntToString(big.NewInt(123)))
}

func TestBigRatToString(t *testing.T) {
	assert.Equal(t, "0", bigRatToString(nil))
	assert.Equal(t, "1.500000000000000000", bigRatToString(big.NewRat(3, 2)))
}

func TestRatingRecord_TableName(t *testing.T) {
	assert.Equal(t, "rating_history", RatingRecord{}.TableName())
}

func TestMySQLRatingHistory_GetLatestRating(t *testing.T) {
	history, mock := newRatingHistoryWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "timestamp", "solution_id", "surplus", "earned_fees", "gas_estimate", "objective_value", "score"}).
		AddRow(1, time.Now(), 7, "1000", "50", "90000", "950.000000000000000000", "900")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `rating_history`")).WillReturnRows(rows)

	record, err := history.GetLatestRating()
	require.NoError(t, err)
	assert.Equal(t, 7, record.SolutionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
