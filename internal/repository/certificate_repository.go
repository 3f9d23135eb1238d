package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.db.Create(cert).Error
}

func (r *CertificateRepository) FindByCode(code string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.db.Where("code = ?", code).First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) ListByUser(userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.db.Where("user_id = ?", userID).
		Order("issue_date DESC").Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) ExistsForAssignment(userID uint, courseID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Certificate{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).Count(&count).Error
	return count > 0, err
}
