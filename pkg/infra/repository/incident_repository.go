package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fairsight-ai/guardian/pkg/domain/incident"
)

type incidentRepository struct {
	db *gorm.DB
}

func NewIncidentRepository(db *gorm.DB) incident.Repository {
	return &incidentRepository{
		db: db,
	}
}

func (r *incidentRepository) Save(ctx context.Context, entity *incident.Incident) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}
