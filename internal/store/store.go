package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// latencyAlpha weights new samples in the moving latency.
	latencyAlpha = 0.2
	// failurePenalty inflates the moving latency on a failed probe.
	failurePenalty = 1.5
)

// Store wraps the profile database.
type Store struct {
	db *gorm.DB
}

// Open connects to the profile database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&Profile{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Add inserts a profile, ignoring hash duplicates. It reports whether a
// row was actually created.
func (s *Store) Add(p *Profile) (bool, error) {
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoNothing: true,
	}).Create(p)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AddBatch inserts profiles in chunks, ignoring hash duplicates, and
// reports the number of new rows.
func (s *Store) AddBatch(profiles []Profile) (int64, error) {
	if len(profiles) == 0 {
		return 0, nil
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoNothing: true,
	}).CreateInBatches(profiles, 500)
	return result.RowsAffected, result.Error
}

// List returns all profiles in insertion order.
func (s *Store) List() ([]Profile, error) {
	var profiles []Profile
	err := s.db.Order("id asc").Find(&profiles).Error
	return profiles, err
}

// Get fetches one profile by ID.
func (s *Store) Get(id uint) (*Profile, error) {
	var p Profile
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Remove deletes a profile by ID.
func (s *Store) Remove(id uint) error {
	result := s.db.Delete(&Profile{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordResult folds a probe outcome into the stored latency. Successful
// samples move the exponential average and reset the failure streak;
// failures inflate the average so flapping servers sink in the ranking.
func (s *Store) RecordResult(id uint, latency time.Duration, ok bool) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}

	if ok {
		sample := float64(latency.Milliseconds())
		if p.LatencyMS == 0 {
			p.LatencyMS = sample
		} else {
			p.LatencyMS = p.LatencyMS*(1-latencyAlpha) + sample*latencyAlpha
		}
		p.Failures = 0
		p.LastOKAt = time.Now()
	} else {
		p.Failures++
		if p.LatencyMS > 0 {
			p.LatencyMS *= failurePenalty
		}
	}
	return s.db.Save(p).Error
}

// Prune removes profiles whose failure streak reached the threshold.
// It reports the number of rows deleted.
func (s *Store) Prune(maxFailures int) (int64, error) {
	if maxFailures <= 0 {
		return 0, fmt.Errorf("prune threshold must be positive, got %d", maxFailures)
	}
	result := s.db.Where("failures >= ?", maxFailures).Delete(&Profile{})
	return result.RowsAffected, result.Error
}

// Best returns the profile with the lowest recorded latency. Profiles
// that never passed a probe do not qualify.
func (s *Store) Best() (*Profile, error) {
	var p Profile
	err := s.db.Where("latency_ms > 0").Order("latency_ms asc").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Count returns the stored profile count.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&Profile{}).Count(&n).Error
	return n, err
}

// CountryCount is one row of the per-country breakdown.
type CountryCount struct {
	Country string
	Count   int64
}

// Countries returns profile counts per country, largest first.
func (s *Store) Countries() ([]CountryCount, error) {
	var counts []CountryCount
	err := s.db.Model(&Profile{}).
		Select("country, count(*) as count").
		Group("country").
		Order("count desc").
		Scan(&counts).Error
	return counts, err
}
