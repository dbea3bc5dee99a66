package db

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the global connection, migrates the schema and seeds global config
func InitDB() {
	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	var err error
	DB, err = Open(config.AppConfig.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("✅ Database connected successfully")

	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")
	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	if err := RunDataMigrations(sqlDB); err != nil {
		log.Fatalf("Data migration failed: %v", err)
	}

	// Initialize default global config if not exists
	initGlobalConfig(DB)

	log.Println("✅ Database schema migrated successfully")
}

// Open connects to postgres with the pool settings from cfg
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		DisableAutomaticPing:                     true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	return gdb, nil
}

// Migrate creates or updates every bridge table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.AllModels()...)
}

type globalConfigDefault struct {
	key         string
	value       string
	description string
}

var globalConfigDefaults = []globalConfigDefault{
	{models.ConfigKeyPaused, strconv.FormatBool(false), "Transfer creation paused by a pauser"},
	{models.ConfigKeyEmergencyStop, strconv.FormatBool(false), "Emergency stop, blocks creation and confirmation"},
	{models.ConfigKeyNextTransferID, "1", "Identifier assigned to the next transfer"},
}

// initGlobalConfig initializes default global configuration if not exists
func initGlobalConfig(db *gorm.DB) {
	for _, def := range globalConfigDefaults {
		if err := ensureGlobalConfig(db, def); err != nil {
			log.Printf("⚠️ Failed to create default global config %s: %v", def.key, err)
		}
	}
}

func ensureGlobalConfig(db *gorm.DB, def globalConfigDefault) error {
	var existing models.GlobalConfig
	if err := db.Where("config_key = ?", def.key).First(&existing).Error; err == nil {
		return nil
	} else if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("lookup: %w", err)
	}

	now := time.Now()
	cfg := models.GlobalConfig{
		ConfigKey:   def.key,
		ConfigValue: def.value,
		Description: def.description,
		UpdatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&cfg).Error; err != nil {
		return err
	}
	log.Printf("✅ Initialized global config: %s = %s", def.key, def.value)
	return nil
}
