package quiz

import (
	"context"
	"errors"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/wikiquiz/server/internal/models"
	"gorm.io/gorm"
)

// ErrDuplicateURL is returned by Insert when a record for the URL exists.
var ErrDuplicateURL = errors.New("quiz record for url already exists")

const mysqlDuplicateEntry = 1062

// CountFilter narrows Count. A zero Since counts every record.
type CountFilter struct {
	Since time.Time
}

// Store persists quiz records. Lookups that miss return (nil, nil).
type Store interface {
	FindByURL(ctx context.Context, url string) (*models.QuizModel, error)
	FindByID(ctx context.Context, id string) (*models.QuizModel, error)
	Insert(ctx context.Context, record *models.QuizModel) (*models.QuizModel, error)
	ListPage(ctx context.Context, offset, count int) ([]models.QuizModel, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, filter CountFilter) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.QuizModel, error)
	Ping(ctx context.Context) error
}

type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) FindByURL(ctx context.Context, url string) (*models.QuizModel, error) {
	return s.first(ctx, "url = ?", url)
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.QuizModel, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) first(ctx context.Context, query string, arg interface{}) (*models.QuizModel, error) {
	var m models.QuizModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Insert assigns the ID and timestamps on record and returns it.
func (s *GormStore) Insert(ctx context.Context, record *models.QuizModel) (*models.QuizModel, error) {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateURL
		}
		return nil, err
	}
	return record, nil
}

// ListPage returns records newest first. Raw markup is not loaded.
func (s *GormStore) ListPage(ctx context.Context, offset, count int) ([]models.QuizModel, error) {
	var items []models.QuizModel
	err := s.db.WithContext(ctx).Omit("raw_html").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(count).
		Find(&items).Error
	return items, err
}

func (s *GormStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.QuizModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Count(ctx context.Context, filter CountFilter) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.QuizModel{})
	if !filter.Since.IsZero() {
		tx = tx.Where("created_at >= ?", filter.Since)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}

// DeleteOlderThan removes records created before cutoff and returns them
// without raw markup so callers can clean up archived copies.
func (s *GormStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.QuizModel, error) {
	var expired []models.QuizModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "url", "archive_key").
			Where("created_at < ?", cutoff).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, len(expired))
		for i := range expired {
			ids[i] = expired[i].ID
		}
		return tx.Where("id IN ?", ids).Delete(&models.QuizModel{}).Error
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key")
}
