package repository

import (
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(assignment *model.Assignment) error {
	return r.db.Create(assignment).Error
}

func (r *AssignmentRepository) FindByID(id uint) (*model.Assignment, error) {
	var assignment model.Assignment
	if err := r.db.First(&assignment, id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *AssignmentRepository) FindByUserAndCourse(userID uint, courseID string) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *AssignmentRepository) ListByUser(userID uint) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.Where("user_id = ?", userID).
		Order("assigned_date DESC").Find(&assignments).Error
	return assignments, err
}

func (r *AssignmentRepository) ListByCourse(courseID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.Where("course_id = ?", courseID).
		Order("assigned_date DESC").Find(&assignments).Error
	return assignments, err
}

func (r *AssignmentRepository) Update(assignment *model.Assignment) error {
	return r.db.Save(assignment).Error
}

// MarkOverdue 把所有已过期且未完成的指派批量置为overdue，返回影响行数
func (r *AssignmentRepository) MarkOverdue(now time.Time) (int64, error) {
	result := r.db.Model(&model.Assignment{}).
		Where("due_date IS NOT NULL AND due_date < ? AND status IN ?",
			now, []model.AssignmentStatus{model.AssignmentPending, model.AssignmentInProgress}).
		Update("status", model.AssignmentOverdue)
	return result.RowsAffected, result.Error
}

func (r *AssignmentRepository) DeleteByCourse(courseID string) error {
	return r.db.Where("course_id = ?", courseID).Delete(&model.Assignment{}).Error
}
