package db

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newOrderEventLogWithMock(t *testing.T) (*MySQLOrderEventLog, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &MySQLOrderEventLog{db: gormDB}, mock
}

func TestMySQLOrderEventLog_StoreInsertsAllEventsInOneTransaction(t *testing.T) {
	log, mock := newOrderEventLogWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_events`")).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	log.Store([]OrderEvent{
		{OrderUID: "0xaaaa", Label: LabelConsidered},
		{OrderUID: "0xbbbb", Label: LabelTraded},
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOrderEventLog_StoreSwallowsErrors(t *testing.T) {
	log, mock := newOrderEventLogWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_events`")).
		WillReturnError(assertError("connection refused"))
	mock.ExpectRollback()

	// Store must not panic or return anything; a failure is logged only.
	assert.NotPanics(t, func() {
		log.Store([]OrderEvent{{OrderUID: "0xaaaa", Label: LabelTraded}})
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOrderEventLog_StoreNoopOnEmptyInput(t *testing.T) {
	log, mock := newOrderEventLogWithMock(t)

	// No expectations set: Store must not touch the database at all.
	log.Store(nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOrderEventLog_storeStampsAllRowsWithSameTimestamp(t *testing.T) {
	log, mock := newOrderEventLogWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_events`")).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := log.store([]OrderEvent{
		{OrderUID: "0xaaaa", Label: LabelCreated},
		{OrderUID: "0xbbbb", Label: LabelReady},
	}, ts)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type assertError string

func (e assertError) Error() string { return string(e) }
