package implementation

import (
	"context"
	"time"

	"mindful-be/internal/entity"
	"mindful-be/internal/mapper"
	"mindful-be/internal/model"
	"mindful-be/internal/repository/contract"
	"mindful-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RealmJournalRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.JournalMapper
}

func NewRealmJournalRepository(db *gorm.DB) contract.RealmJournalRepository {
	return &RealmJournalRepositoryImpl{
		db:     db,
		mapper: mapper.NewJournalMapper(),
	}
}

func (r *RealmJournalRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RealmJournalRepositoryImpl) Create(ctx context.Context, entry *entity.RealmJournalEntry) error {
	if entry.Id == uuid.Nil {
		entry.Id = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m, err := r.mapper.EntryToModel(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *RealmJournalRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RealmJournalEntry, error) {
	var models []*model.RealmJournalEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.RealmJournalEntry, len(models))
	for i, m := range models {
		entities[i] = r.mapper.EntryToEntity(m)
	}
	return entities, nil
}

func (r *RealmJournalRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.RealmJournalEntry{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
