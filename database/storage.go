package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"option-chain-analyzer/chain"
	"option-chain-analyzer/interfaces"
	"option-chain-analyzer/models"
	"option-chain-analyzer/pricing"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LocalStorage implements the StorageService interface using SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DBPriceTick{},
		&models.DBChainSnapshot{},
		&models.DBChainRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: logger,
	}, nil
}

// SaveTick saves a streamed price
func (s *LocalStorage) SaveTick(tick *interfaces.PriceTick) error {
	dbTick := &models.DBPriceTick{
		Symbol:    tick.Symbol,
		Timestamp: tick.Timestamp,
		Price:     tick.Price,
		Source:    tick.Source,
	}

	if err := s.db.Create(dbTick).Error; err != nil {
		return fmt.Errorf("failed to save tick: %w", err)
	}
	return nil
}

// GetTicks returns the most recent ticks for a symbol, oldest first
func (s *LocalStorage) GetTicks(symbol string, limit int) ([]*interfaces.PriceTick, error) {
	var dbTicks []*models.DBPriceTick

	query := s.db.Where("symbol = ?", symbol).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&dbTicks).Error; err != nil {
		return nil, fmt.Errorf("failed to get ticks: %w", err)
	}

	ticks := make([]*interfaces.PriceTick, len(dbTicks))
	for i, dbTick := range dbTicks {
		ticks[len(dbTicks)-1-i] = &interfaces.PriceTick{
			Symbol:    dbTick.Symbol,
			Price:     dbTick.Price,
			Timestamp: dbTick.Timestamp,
			Source:    dbTick.Source,
		}
	}
	return ticks, nil
}

// SaveChainSnapshot stores a chain and all of its rows
func (s *LocalStorage) SaveChainSnapshot(snapshot *interfaces.ChainSnapshot) error {
	dbSnapshot := &models.DBChainSnapshot{
		Symbol:          snapshot.Symbol,
		UnderlyingPrice: snapshot.UnderlyingPrice,
		Expiry:          snapshot.Expiry,
		RiskFreeRate:    snapshot.RiskFreeRate,
		Volatility:      snapshot.Volatility,
		StrikeRange:     snapshot.StrikeRange,
		StrikeStep:      snapshot.StrikeStep,
		ComputedAt:      snapshot.ComputedAt,
		Rows:            make([]models.DBChainRow, len(snapshot.Rows)),
	}
	for i, row := range snapshot.Rows {
		dbSnapshot.Rows[i] = models.DBChainRow{
			Strike:    row.Strike,
			IsATM:     row.IsATM,
			CallPrice: row.CallPrice,
			CallDelta: row.CallGreeks.Delta,
			CallGamma: row.CallGreeks.Gamma,
			CallTheta: row.CallGreeks.Theta,
			CallVega:  row.CallGreeks.Vega,
			CallRho:   row.CallGreeks.Rho,
			PutPrice:  row.PutPrice,
			PutDelta:  row.PutGreeks.Delta,
			PutGamma:  row.PutGreeks.Gamma,
			PutTheta:  row.PutGreeks.Theta,
			PutVega:   row.PutGreeks.Vega,
			PutRho:    row.PutGreeks.Rho,
		}
	}

	if err := s.db.Create(dbSnapshot).Error; err != nil {
		return fmt.Errorf("failed to save chain snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":  snapshot.Symbol,
		"strikes": len(snapshot.Rows),
		"id":      dbSnapshot.ID,
	}).Debug("Chain snapshot saved")
	return nil
}

// GetLatestChainSnapshot retrieves the newest chain stored for a symbol
func (s *LocalStorage) GetLatestChainSnapshot(symbol string) (*interfaces.ChainSnapshot, error) {
	var dbSnapshot models.DBChainSnapshot

	result := s.db.Preload("Rows", func(db *gorm.DB) *gorm.DB {
		return db.Order("strike ASC")
	}).Where("symbol = ?", symbol).Order("computed_at DESC").First(&dbSnapshot)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no chain snapshot for %s: %w", symbol, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chain snapshot: %w", result.Error)
	}

	rows := make(chain.OptionChain, len(dbSnapshot.Rows))
	for i, r := range dbSnapshot.Rows {
		rows[i] = chain.Row{
			Strike:     r.Strike,
			CallPrice:  r.CallPrice,
			PutPrice:   r.PutPrice,
			CallGreeks: pricing.GreeksResult{Delta: r.CallDelta, Gamma: r.CallGamma, Theta: r.CallTheta, Vega: r.CallVega, Rho: r.CallRho},
			PutGreeks:  pricing.GreeksResult{Delta: r.PutDelta, Gamma: r.PutGamma, Theta: r.PutTheta, Vega: r.PutVega, Rho: r.PutRho},
			IsATM:      r.IsATM,
			ComputedAt: dbSnapshot.ComputedAt,
		}
	}

	return &interfaces.ChainSnapshot{
		Symbol:          dbSnapshot.Symbol,
		UnderlyingPrice: dbSnapshot.UnderlyingPrice,
		Expiry:          dbSnapshot.Expiry,
		RiskFreeRate:    dbSnapshot.RiskFreeRate,
		Volatility:      dbSnapshot.Volatility,
		StrikeRange:     dbSnapshot.StrikeRange,
		StrikeStep:      dbSnapshot.StrikeStep,
		ComputedAt:      dbSnapshot.ComputedAt,
		Rows:            rows,
	}, nil
}

// CleanupOldData removes data older than the specified time
func (s *LocalStorage) CleanupOldData(before time.Time) error {
	s.logger.WithField("before", before).Info("Cleaning up old data")

	if err := s.db.Unscoped().Where("timestamp < ?", before).Delete(&models.DBPriceTick{}).Error; err != nil {
		return fmt.Errorf("failed to delete old ticks: %w", err)
	}

	oldSnapshots := s.db.Unscoped().Model(&models.DBChainSnapshot{}).Select("id").Where("computed_at < ?", before)
	if err := s.db.Unscoped().Where("snapshot_id IN (?)", oldSnapshots).Delete(&models.DBChainRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete old chain rows: %w", err)
	}

	if err := s.db.Unscoped().Where("computed_at < ?", before).Delete(&models.DBChainSnapshot{}).Error; err != nil {
		return fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	s.logger.Info("Old data cleaned up successfully")
	return nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
