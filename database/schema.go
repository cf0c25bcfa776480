package database

import (
	"fmt"

	"github.com/rs/zerolog/log"

	models "nse-pulse/database/models_pkg"
)

// InitSchema creates or migrates every table used by the dashboard backend
func (d *Database) InitSchema() error {
	log.Info().Msg("🔄 Starting database schema initialization...")

	err := d.db.AutoMigrate(
		&models.StockMaster{},
		&models.PreopenSnapshot{},
		&models.DeliveryVolumeSnapshot{},
		&models.IntradayAnalysis{},
		&models.Webhook{},
		&models.WebhookData{},
		&models.FinancialCalendarEntry{},
		&models.StockNews{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// Snapshot readers always filter by date and pick the newest ingestion
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_preopen_snapshots_date_ts ON preopen_snapshots (date, timestamp DESC, received_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_snapshots_date_ts ON delivery_snapshots (date, timestamp DESC, received_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_data_webhook_received ON webhook_data (webhook_id, received_at DESC)`,
	}
	for _, stmt := range indexes {
		if err := d.db.Exec(stmt).Error; err != nil {
			log.Warn().Err(err).Str("statement", stmt).Msg("⚠️ Failed to create index")
		}
	}

	log.Info().Msg("✅ Database schema initialized")
	return nil
}
