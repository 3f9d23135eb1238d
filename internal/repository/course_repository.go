package repository

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	if course.Modules == nil {
		course.Modules = model.ModuleList{}
	}
	return r.db.Create(course).Error
}

// FindByID 读出完整课程文档（含全部模块）
func (r *CourseRepository) FindByID(id string) (*model.Course, error) {
	var course model.Course
	err := r.db.Where("id = ?", id).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) List(page, limit int, category string) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.db.Model(&model.Course{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset((page - 1) * limit).Limit(limit).
		Order("created_at DESC").Find(&courses).Error
	return courses, total, err
}

// UpdateMeta 只更新课程元信息，不触碰modules列
func (r *CourseRepository) UpdateMeta(course *model.Course) error {
	result := r.db.Model(&model.Course{}).Where("id = ?", course.ID).
		Updates(map[string]interface{}{
			"title":          course.Title,
			"description":    course.Description,
			"category":       course.Category,
			"thumbnail":      course.Thumbnail,
			"pass_threshold": course.PassThreshold,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrCourseNotFound
	}
	return nil
}

// UpdateModules 带版本校验地整体替换模块列表。
// 版本不匹配说明其它写入者先提交了，返回 ErrCourseConflict，
// 调用方应重新读取后重试（见 CourseService.AppendGeneratedModules）。
func (r *CourseRepository) UpdateModules(id string, modules model.ModuleList, expectVersion int) error {
	if oversized := modules.Oversized(util.MaxInlineFieldBytes); len(oversized) > 0 {
		logger.Log.Warn("课程模块内联内容过大，建议改走对象存储",
			zap.String("course_id", id),
			zap.Strings("module_ids", oversized))
	}

	result := r.db.Model(&model.Course{}).
		Where("id = ? AND version = ?", id, expectVersion).
		Updates(map[string]interface{}{
			"modules": modules,
			"version": expectVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 区分"课程不存在"和"版本冲突"
		var count int64
		if err := r.db.Model(&model.Course{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return util.ErrCourseNotFound
		}
		return util.ErrCourseConflict
	}
	return nil
}

func (r *CourseRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&model.Course{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrCourseNotFound
	}
	return nil
}
