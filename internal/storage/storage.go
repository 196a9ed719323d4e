package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	dialector, err := dialectorFor(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxConns := cfg.DatabaseMaxConns
	if cfg.DatabaseDriver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(max(maxConns/2, 1))
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.WithField("driver", cfg.DatabaseDriver).Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// NewWithConn wraps an existing GORM connection.
func NewWithConn(conn *gorm.DB, log *logrus.Logger) *DB {
	return &DB{conn: conn, log: log}
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the schema
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&BlacklistEntry{},
		&AssetSnapshot{},
		&SecurityCheck{},
		&VolumeCheck{},
		&AlertRecord{},
		&TradeRecord{},
	)
}

// GetBlacklistEntry returns the entry for address, or nil when absent.
func (db *DB) GetBlacklistEntry(ctx context.Context, address string) (*BlacklistEntry, error) {
	defer observe("get_blacklist")()

	var entry BlacklistEntry
	result := db.conn.WithContext(ctx).Where("address = ?", address).Limit(1).Find(&entry)
	if result.Error != nil {
		metrics.DatabaseQueries.WithLabelValues("get_blacklist", "error").Inc()
		return nil, result.Error
	}
	metrics.DatabaseQueries.WithLabelValues("get_blacklist", "success").Inc()
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &entry, nil
}

// IsBlacklisted reports membership and the stored details.
func (db *DB) IsBlacklisted(ctx context.Context, address string) (bool, *BlacklistEntry, error) {
	entry, err := db.GetBlacklistEntry(ctx, address)
	if err != nil {
		return false, nil, err
	}
	return entry != nil, entry, nil
}

// AddToBlacklist inserts the address if absent. Concurrent or repeated calls
// for the same address leave exactly one row and return nil.
func (db *DB) AddToBlacklist(ctx context.Context, address, category, reason string) error {
	entry := &BlacklistEntry{
		Address:  address,
		Category: category,
		Reason:   reason,
	}
	_, err := db.insertIfAbsent(ctx, "insert_blacklist", entry)
	return err
}

// InsertSnapshotIfAbsent stores the first snapshot for an address. inserted is
// false when one already existed; the existing row is never modified.
func (db *DB) InsertSnapshotIfAbsent(ctx context.Context, snap *AssetSnapshot) (inserted bool, err error) {
	return db.insertIfAbsent(ctx, "insert_snapshot", snap)
}

// GetSnapshot returns the stored snapshot, or nil.
func (db *DB) GetSnapshot(ctx context.Context, address string) (*AssetSnapshot, error) {
	var snap AssetSnapshot
	result := db.conn.WithContext(ctx).Where("address = ?", address).Limit(1).Find(&snap)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &snap, nil
}

// RecentSnapshots returns up to limit snapshots, oldest first.
func (db *DB) RecentSnapshots(ctx context.Context, limit int) ([]AssetSnapshot, error) {
	var snaps []AssetSnapshot
	result := db.conn.WithContext(ctx).
		Order("first_seen_ts DESC").
		Limit(limit).
		Find(&snaps)
	if result.Error != nil {
		return nil, result.Error
	}
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

// InsertSecurityCheck appends a security check row
func (db *DB) InsertSecurityCheck(ctx context.Context, check *SecurityCheck) error {
	return db.create(ctx, "insert_security_check", check)
}

// InsertVolumeCheck appends a volume check row
func (db *DB) InsertVolumeCheck(ctx context.Context, check *VolumeCheck) error {
	return db.create(ctx, "insert_volume_check", check)
}

// InsertAlert appends an alert record and returns its ID
func (db *DB) InsertAlert(ctx context.Context, alert *AlertRecord) (int64, error) {
	if err := db.create(ctx, "insert_alert", alert); err != nil {
		return 0, err
	}
	return alert.ID, nil
}

// InsertTrade appends a trade record
func (db *DB) InsertTrade(ctx context.Context, trade *TradeRecord) error {
	return db.create(ctx, "insert_trade", trade)
}

// CountBlacklist returns the number of blacklisted addresses
func (db *DB) CountBlacklist(ctx context.Context) (int64, error) {
	var count int64
	result := db.conn.WithContext(ctx).Model(&BlacklistEntry{}).Count(&count)
	return count, result.Error
}

// AlertsForAddress returns alerts for an address, oldest first
func (db *DB) AlertsForAddress(ctx context.Context, address string) ([]AlertRecord, error) {
	var alerts []AlertRecord
	result := db.conn.WithContext(ctx).
		Where("address = ?", address).
		Order("id ASC").
		Find(&alerts)
	return alerts, result.Error
}

func (db *DB) insertIfAbsent(ctx context.Context, op string, value interface{}) (bool, error) {
	defer observe(op)()

	result := db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(value)
	if result.Error != nil {
		metrics.DatabaseQueries.WithLabelValues(op, "error").Inc()
		return false, fmt.Errorf("%s: %w", op, result.Error)
	}
	metrics.DatabaseQueries.WithLabelValues(op, "success").Inc()
	return result.RowsAffected > 0, nil
}

func (db *DB) create(ctx context.Context, op string, value interface{}) error {
	defer observe(op)()

	if err := db.conn.WithContext(ctx).Create(value).Error; err != nil {
		metrics.DatabaseQueries.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.DatabaseQueries.WithLabelValues(op, "success").Inc()
	return nil
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.DatabaseQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func newGormLogger(log *logrus.Logger) logger.Interface {
	return logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
