package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cowsettle/gpv2core/internal/logging"
)

var dbLog = logging.New("db")

// OrderEventLabel names a point in an order's lifecycle worth recording for
// diagnostics. Exact label names aren't load-bearing for settlement
// correctness; this is a reasonable, documented set covering creation
// through execution.
type OrderEventLabel string

const (
	LabelCreated    OrderEventLabel = "created"
	LabelReady      OrderEventLabel = "ready"
	LabelFiltered   OrderEventLabel = "filtered"
	LabelInvalid    OrderEventLabel = "invalid"
	LabelConsidered OrderEventLabel = "considered"
	LabelExecuting  OrderEventLabel = "executing"
	LabelTraded     OrderEventLabel = "traded"
	LabelCancelled  OrderEventLabel = "cancelled"
)

// OrderEventRecord is the database model for a single append-only order
// event row.
type OrderEventRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	OrderUID  string    `gorm:"type:varchar(112);not null;index;comment:hex-encoded order uid"`
	Label     string    `gorm:"type:varchar(32);not null"`
	Timestamp time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for GORM.
func (OrderEventRecord) TableName() string {
	return "order_events"
}

// OrderEvent pairs an order with the label being recorded for it.
type OrderEvent struct {
	OrderUID string
	Label    OrderEventLabel
}

// MySQLOrderEventLog persists order lifecycle labels via GORM and MySQL.
type MySQLOrderEventLog struct {
	db *gorm.DB
}

// NewMySQLOrderEventLog opens a MySQL connection and migrates the
// order_events table. dsn format:
// "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLOrderEventLog(dsn string) (*MySQLOrderEventLog, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewMySQLOrderEventLogWithDB(db)
}

// NewMySQLOrderEventLogWithDB wraps an existing GORM DB instance, migrating
// the order_events table on it.
func NewMySQLOrderEventLogWithDB(db *gorm.DB) (*MySQLOrderEventLog, error) {
	if err := db.AutoMigrate(&OrderEventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLOrderEventLog{db: db}, nil
}

// Store inserts events as a single batch in one transaction, stamped with
// the current time. This is best-effort diagnostic logging, not an
// authoritative record: any failure is logged and swallowed rather than
// propagated, so a database hiccup never blocks the caller's real work.
func (l *MySQLOrderEventLog) Store(events []OrderEvent) {
	if len(events) == 0 {
		return
	}
	if err := l.store(events, time.Now()); err != nil {
		dbLog.Warnf("failed to insert order events: %v", err)
	}
}

func (l *MySQLOrderEventLog) store(events []OrderEvent, timestamp time.Time) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		records := make([]OrderEventRecord, len(events))
		for i, e := range events {
			records[i] = OrderEventRecord{
				OrderUID:  e.OrderUID,
				Label:     string(e.Label),
				Timestamp: timestamp,
			}
		}
		return tx.Create(&records).Error
	})
}

// Close closes the database connection.
func (l *MySQLOrderEventLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}
