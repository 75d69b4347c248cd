package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spotmap/spotmap/models"
)

// Bucket names for stored blobs.
const (
	BucketAudio      = "audiofiles"
	BucketSpotImages = "spotimages"
	BucketJourney    = "journeymap"
)

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = errors.New("file too large")

// StoredFile is a blob written by LocalStore.
type StoredFile struct {
	ID     uint   `json:"-"`
	Bucket string `json:"bucket"`
	Path   string `json:"-"`
	URL    string `json:"url"`
}

// LocalStore writes blobs under a directory served as static files and
// tracks each one in models.UploadedFile until it is attached to a row.
type LocalStore struct {
	db        *gorm.DB
	root      string
	publicURL string
	maxBytes  int64
	orphanTTL time.Duration
	now       func() time.Time
}

// NewLocalStore creates a store rooted at root whose files are served under publicURL.
func NewLocalStore(db *gorm.DB, root, publicURL string, maxBytes int64, orphanTTL time.Duration) *LocalStore {
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	if orphanTTL <= 0 {
		orphanTTL = time.Hour
	}
	return &LocalStore{
		db:        db,
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		orphanTTL: orphanTTL,
		now:       time.Now,
	}
}

// Save writes r into bucket under a random name keeping the extension of name.
func (s *LocalStore) Save(ctx context.Context, bucket, name string, r io.Reader) (StoredFile, error) {
	dir := filepath.Join(s.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create bucket dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(name))
	object := time.Now().UTC().Format("20060102") + "_" + uuid.NewString() + ext
	full := filepath.Join(dir, object)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create blob: %w", err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if copyErr == nil && n > s.maxBytes {
		copyErr = ErrFileTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(full)
		return StoredFile{}, copyErr
	}

	rec := models.UploadedFile{
		Bucket:   bucket,
		FilePath: full,
		URL:      s.publicURL + "/" + path.Join(bucket, object),
		ExpireAt: s.now().UTC().Add(s.orphanTTL),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		_ = os.Remove(full)
		return StoredFile{}, fmt.Errorf("record upload: %w", err)
	}
	return StoredFile{ID: rec.ID, Bucket: bucket, Path: full, URL: rec.URL}, nil
}

// Attach marks files as referenced so Sweep keeps them.
func (s *LocalStore) Attach(ctx context.Context, files ...StoredFile) error {
	ids := fileIDs(files)
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.UploadedFile{}).Where("id IN ?", ids).
		UpdateColumn("attached", true).Error
}

// Delete removes files from disk and the ledger. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, files ...StoredFile) error {
	var errs []error
	for _, f := range files {
		if f.Path != "" {
			if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
	}
	if ids := fileIDs(files); len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.UploadedFile{}).Error; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteByURL removes the blobs recorded under the given public URLs.
func (s *LocalStore) DeleteByURL(ctx context.Context, urls ...string) error {
	var recs []models.UploadedFile
	if err := s.db.WithContext(ctx).Where("url IN ?", urls).Find(&recs).Error; err != nil {
		return err
	}
	files := make([]StoredFile, 0, len(recs))
	for _, r := range recs {
		files = append(files, StoredFile{ID: r.ID, Bucket: r.Bucket, Path: r.FilePath, URL: r.URL})
	}
	return s.Delete(ctx, files...)
}

// Sweep deletes unattached blobs whose grace period has passed and returns how many were removed.
func (s *LocalStore) Sweep(ctx context.Context) (int, error) {
	var recs []models.UploadedFile
	if err := s.db.WithContext(ctx).
		Where("attached = ? AND expire_at <= ?", false, s.now().UTC()).
		Limit(500).Find(&recs).Error; err != nil {
		return 0, err
	}
	files := make([]StoredFile, 0, len(recs))
	for _, r := range recs {
		files = append(files, StoredFile{ID: r.ID, Bucket: r.Bucket, Path: r.FilePath, URL: r.URL})
	}
	return len(files), s.Delete(ctx, files...)
}

func fileIDs(files []StoredFile) []uint {
	ids := make([]uint, 0, len(files))
	for _, f := range files {
		if f.ID != 0 {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
