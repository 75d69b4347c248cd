package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/spotmap/spotmap/geo"
	"github.com/spotmap/spotmap/models"
)

// ErrSpotNotFound is returned when no spot matches the lookup.
var ErrSpotNotFound = errors.New("spot not found")

// SpotRepository reads and writes spots.
type SpotRepository struct {
	db *gorm.DB
}

// NewSpotRepository creates a SpotRepository.
func NewSpotRepository(db *gorm.DB) *SpotRepository {
	return &SpotRepository{db: db}
}

// Create inserts a spot.
func (r *SpotRepository) Create(ctx context.Context, s *models.Spot) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ListAll returns every spot, the candidate set for proximity queries.
func (r *SpotRepository) ListAll(ctx context.Context) ([]models.Spot, error) {
	spots := []models.Spot{}
	err := r.db.WithContext(ctx).Order("id ASC").Find(&spots).Error
	return spots, err
}

// WithinBox returns spots whose position lies inside b, edges included.
func (r *SpotRepository) WithinBox(ctx context.Context, b geo.BoundingBox) ([]models.Spot, error) {
	spots := []models.Spot{}
	err := r.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", b.MinLat, b.MaxLat).
		Where("longitude BETWEEN ? AND ?", b.MinLon, b.MaxLon).
		Order("id ASC").
		Find(&spots).Error
	return spots, err
}

// ListByUser returns all spots posted by username, newest first.
func (r *SpotRepository) ListByUser(ctx context.Context, username string) ([]models.Spot, error) {
	spots := []models.Spot{}
	err := r.db.WithContext(ctx).Where("username = ?", username).Order("created_at DESC, id DESC").Find(&spots).Error
	return spots, err
}

// FindAt returns the user's spot located within tol degrees of (lat, lon).
func (r *SpotRepository) FindAt(ctx context.Context, username string, lat, lon, tol float64) (*models.Spot, error) {
	var s models.Spot
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Where("latitude BETWEEN ? AND ?", lat-tol, lat+tol).
		Where("longitude BETWEEN ? AND ?", lon-tol, lon+tol).
		Order("id ASC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSpotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByID returns a spot by primary key.
func (r *SpotRepository) FindByID(ctx context.Context, id uint) (*models.Spot, error) {
	var s models.Spot
	err := r.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSpotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IncrementViewCount bumps the view counter in a single statement and
// returns the new value.
func (r *SpotRepository) IncrementViewCount(ctx context.Context, id uint) (int, error) {
	res := r.db.WithContext(ctx).Model(&models.Spot{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrSpotNotFound
	}
	var s models.Spot
	if err := r.db.WithContext(ctx).Select("view_count").First(&s, id).Error; err != nil {
		return 0, err
	}
	return s.ViewCount, nil
}

// Delete removes a spot by id.
func (r *SpotRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Spot{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSpotNotFound
	}
	return nil
}

// SpotLocator adapts models.Spot for geo.Nearby.
func SpotLocator(s models.Spot) (geo.Point, string) {
	return geo.Point{Lat: s.Latitude, Lon: s.Longitude}, s.Category
}
