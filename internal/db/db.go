package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-lighting-backend/config"
	"smart-lighting-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
// A postgres:// DSN selects the postgres driver; anything else is treated as
// a sqlite file path, which is the default local deployment.
func Init(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(openDialector(cfg.Database.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Room{},
		&model.DetectionRecord{},
		&model.MonitoringSettings{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if err := seedSettings(db, &cfg.Detection); err != nil {
		return nil, fmt.Errorf("failed to seed monitoring settings: %w", err)
	}

	if cfg.Database.SeedDefaultRooms {
		if err := seedRooms(db); err != nil {
			return nil, fmt.Errorf("failed to seed default rooms: %w", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func openDialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// seedSettings creates the global monitoring settings row from the configured
// detection defaults. A row that already exists is left alone so values set
// through the API survive restarts.
func seedSettings(db *gorm.DB, cfg *config.DetectionConfig) error {
	var count int64
	if err := db.Model(&model.MonitoringSettings{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Create(&model.MonitoringSettings{
		ID:                  1,
		IntervalSeconds:     config.ClampInterval(cfg.IntervalSeconds),
		ConfidenceThreshold: config.ClampConfidence(cfg.ConfidenceThreshold),
		UpdatedAt:           time.Now().UTC(),
	}).Error
}

// seedRooms inserts a pair of sample rooms on a fresh database so the
// dashboard is not empty on first run.
func seedRooms(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Room{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	rooms := []model.Room{
		{
			ID:               uuid.NewString(),
			Name:             "Living Room",
			Description:      "Main living area with smart lighting",
			ImageURL:         "/placeholder.svg?height=200&width=300",
			OccupancyStatus:  model.OccupancyEmpty,
			LightStatus:      model.LightOff,
			Brightness:       80,
			ColorTemperature: 3000,
			ColorPreset:      "warm-white",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:                    uuid.NewString(),
			Name:                  "Kitchen",
			Description:           "Kitchen area with automated lighting",
			ImageURL:              "/placeholder.svg?height=200&width=300",
			OccupancyStatus:       model.OccupancyEmpty,
			LightStatus:           model.LightOff,
			LiveMonitoringEnabled: true,
			Brightness:            80,
			ColorTemperature:      3000,
			ColorPreset:           "warm-white",
			CreatedAt:             now,
			UpdatedAt:             now,
		},
	}

	log.Printf("Seeding %d default rooms...", len(rooms))
	return db.Create(&rooms).Error
}
