package dao

import (
	"brutalist/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// NormalizePage clamps a requested page and page size to usable values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

type ReportDAO interface {
	SaveReport(report *models.Report) error
	GetReportByUUID(uuid string) (*models.Report, error)
	ListReports() ([]models.Report, error)
	ListReportsWithPagination(page, limit int) ([]models.Report, int64, error)
	UpdateReport(report *models.Report) error
	DeleteReport(uuid string) error
	FindByArchivePath(path string) (*models.Report, error)
}

type reportDAO struct {
	db *gorm.DB
}

func NewReportDAO(db *gorm.DB) ReportDAO {
	return &reportDAO{db: db}
}

func (dao *reportDAO) SaveReport(report *models.Report) error {
	return dao.db.Create(report).Error
}

func (dao *reportDAO) UpdateReport(report *models.Report) error {
	return dao.db.Save(report).Error
}

func (dao *reportDAO) GetReportByUUID(uuid string) (*models.Report, error) {
	var report models.Report
	if err := dao.db.Where("uuid = ?", uuid).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns the 50 most recent reports without their output.
func (dao *reportDAO) ListReports() ([]models.Report, error) {
	var reports []models.Report
	if err := dao.db.Omit("output", "result_json").Order("created_at desc").Limit(50).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// ListReportsWithPagination returns one page of reports, newest first and
// without their output, plus the total report count.
func (dao *reportDAO) ListReportsWithPagination(page, limit int) ([]models.Report, int64, error) {
	var reports []models.Report
	var total int64

	page, limit = NormalizePage(page, limit)
	offset := (page - 1) * limit

	if err := dao.db.Model(&models.Report{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := dao.db.Omit("output", "result_json").
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&reports).Error; err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

func (dao *reportDAO) DeleteReport(uuid string) error {
	result := dao.db.Where("uuid = ?", uuid).Delete(&models.Report{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByArchivePath returns the report whose result was archived at path.
func (dao *reportDAO) FindByArchivePath(path string) (*models.Report, error) {
	var report models.Report
	if err := dao.db.Where("archive_path = ?", path).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}
