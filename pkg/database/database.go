package database

import (
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/config"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   NewQueryLogger(log, cfg.SlowQueryThreshold),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "auth", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&patient.Patient{},
		&consultation.Consultation{},
		&prescription.Prescription{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// Uniqueness only applies to live rows so a soft-deleted account does not
// block re-registration.
var indexes = []struct {
	name  string
	query string
}{
	{
		name:  "uq_users_email_live",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email_live ON auth.users (email) WHERE deleted_at IS NULL`,
	},
	{
		name:  "uq_users_username_live",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_users_username_live ON auth.users (username) WHERE deleted_at IS NULL`,
	},
	{
		name:  "uq_patients_user_live",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_patients_user_live ON clinical.patients (user_id) WHERE deleted_at IS NULL`,
	},
	{
		name:  "idx_consultations_doctor_date",
		query: `CREATE INDEX IF NOT EXISTS idx_consultations_doctor_date ON clinical.consultations (doctor_id, consultation_date DESC) WHERE deleted_at IS NULL`,
	},
	{
		name:  "idx_prescriptions_active",
		query: `CREATE INDEX IF NOT EXISTS idx_prescriptions_active ON clinical.prescriptions (patient_id, status, expiry_date) WHERE deleted_at IS NULL AND status = 'active'`,
	},
	{
		name:  "idx_audit_resource_time",
		query: `CREATE INDEX IF NOT EXISTS idx_audit_resource_time ON audit.logs (resource_type, resource_id, timestamp DESC)`,
	},
}

func createIndexes(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("%s: %w", idx.name, err)
		}
	}
	return nil
}
