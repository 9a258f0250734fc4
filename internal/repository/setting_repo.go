package repository

import (
	"context"

	"hrm/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the singleton row, or defaults when it has not been written yet.
func (r *SettingRepository) Get(ctx context.Context) (models.OrgSettings, error) {
	var s models.OrgSetting
	err := r.db.WithContext(ctx).Where("id = ?", models.OrgSettingsID).Limit(1).Find(&s).Error
	if err != nil {
		return models.OrgSettings{}, err
	}
	if s.ID == 0 {
		return models.DefaultOrgSettings(), nil
	}
	return s.Settings.Data(), nil
}

func (r *SettingRepository) Set(ctx context.Context, settings models.OrgSettings, updatedBy uint) error {
	row := models.OrgSetting{
		ID:        models.OrgSettingsID,
		Settings:  datatypes.NewJSONType(settings),
		UpdatedBy: &updatedBy,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"settings", "updated_by", "updated_at"}),
	}).Create(&row).Error
}
