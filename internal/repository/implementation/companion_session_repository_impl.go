package implementation

import (
	"context"
	"errors"
	"time"

	"mindful-be/internal/entity"
	"mindful-be/internal/mapper"
	"mindful-be/internal/model"
	"mindful-be/internal/repository/contract"
	"mindful-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanionSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CompanionMapper
}

func NewCompanionSessionRepository(db *gorm.DB) contract.CompanionSessionRepository {
	return &CompanionSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewCompanionMapper(),
	}
}

func (r *CompanionSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CompanionSessionRepositoryImpl) Create(ctx context.Context, session *entity.CompanionSession) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	if session.LastActiveAt.IsZero() {
		session.LastActiveAt = time.Now()
	}
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *CompanionSessionRepositoryImpl) Update(ctx context.Context, session *entity.CompanionSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *CompanionSessionRepositoryImpl) Touch(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.CompanionSession{}).
		Where("id = ?", id).
		Update("last_active_at", time.Now()).Error
}

func (r *CompanionSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.CompanionSession{}, "id = ?", id).Error
}

func (r *CompanionSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CompanionSession, error) {
	var m model.CompanionSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}
