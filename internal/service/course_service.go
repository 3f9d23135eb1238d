package service

import (
	"context"
	"encoding/json"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	courseCachePrefix  = "course:"
	courseCacheTTL     = 10 * time.Minute
	courseListVerKey   = "courses:list:ver"
	courseListCacheTTL = time.Minute

	// 合并重试上限。后台生成器之间的并发窗口很短，
	// 三次重读重试足以覆盖正常的版本冲突。
	mergeMaxRetries = 3
)

// CourseService 课程的增删改查和模块合并
type CourseService struct {
	courseRepo *repository.CourseRepository
	storage    *StorageService
	redis      *redis.Client
}

func NewCourseService(courseRepo *repository.CourseRepository, storage *StorageService, rdb *redis.Client) *CourseService {
	return &CourseService{
		courseRepo: courseRepo,
		storage:    storage,
		redis:      rdb,
	}
}

// CreateCourse 创建课程，空字段填默认值
func (s *CourseService) CreateCourse(ctx context.Context, course *model.Course) error {
	course.Title = strings.TrimSpace(course.Title)
	if course.Title == "" {
		course.Title = "新课程"
	}
	course.Category = model.NormalizeCategory(course.Category)
	if course.Thumbnail == "" {
		course.Thumbnail = model.DefaultThumbnail
	}
	if course.PassThreshold <= 0 || course.PassThreshold > 100 {
		course.PassThreshold = model.DefaultPassThreshold
	}
	if course.Modules == nil {
		course.Modules = model.ModuleList{}
	}
	if err := s.courseRepo.Create(course); err != nil {
		return err
	}
	s.bumpListVersion(ctx)
	return nil
}

// GetCourse 优先读缓存，未命中回源并回填
func (s *CourseService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, courseCachePrefix+id).Result()
		if err == nil {
			var course model.Course
			if err := json.Unmarshal([]byte(cached), &course); err == nil {
				return &course, nil
			}
		}
	}

	course, err := s.courseRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	s.cacheCourse(ctx, course)
	return course, nil
}

type courseListPage struct {
	Courses []model.Course `json:"courses"`
	Total   int64          `json:"total"`
}

// ListCourses 列表带短TTL缓存。缓存键里带一个命名空间版本号，
// 任何写操作INCR版本号即可让全部列表页整体失效，不用扫键。
func (s *CourseService) ListCourses(ctx context.Context, page, limit int, category string) ([]model.Course, int64, error) {
	key := s.listCacheKey(ctx, page, limit, category)
	if key != "" {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			var pageData courseListPage
			if err := json.Unmarshal([]byte(cached), &pageData); err == nil {
				return pageData.Courses, pageData.Total, nil
			}
		}
	}

	courses, total, err := s.courseRepo.List(page, limit, category)
	if err != nil {
		return nil, 0, err
	}

	if key != "" {
		if data, err := json.Marshal(courseListPage{Courses: courses, Total: total}); err == nil {
			s.redis.Set(ctx, key, data, courseListCacheTTL)
		}
	}
	return courses, total, nil
}

func (s *CourseService) listCacheKey(ctx context.Context, page, limit int, category string) string {
	if s.redis == nil {
		return ""
	}
	ver, err := s.redis.Get(ctx, courseListVerKey).Result()
	if err != nil {
		ver = "0"
	}
	return fmt.Sprintf("courses:list:%s:%s:%d:%d", ver, category, page, limit)
}

func (s *CourseService) bumpListVersion(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(ctx, courseListVerKey).Err(); err != nil {
		logger.Log.Debug("课程列表缓存版本号更新失败", zap.Error(err))
	}
}

func (s *CourseService) UpdateCourse(ctx context.Context, course *model.Course) error {
	course.Category = model.NormalizeCategory(course.Category)
	if err := s.courseRepo.UpdateMeta(course); err != nil {
		return err
	}
	s.invalidateCourse(ctx, course.ID)
	s.bumpListVersion(ctx)
	return nil
}

// DeleteCourse 删除课程并清理其对象存储资产。
// 资产清理尽力而为，失败不回滚课程删除。
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	if err := s.courseRepo.Delete(id); err != nil {
		return err
	}
	s.invalidateCourse(ctx, id)
	s.bumpListVersion(ctx)
	s.storage.DeleteCourseAssets(ctx, id)
	return nil
}

// AppendGeneratedModules 把后台生成的模块追加到课程文档。
// 只追加从不覆盖，已有模块的身份和顺序一律不动；
// 排序规则只作用于本次新增：新增的测验模块排在新增模块的最后。
// 写入采用乐观锁：版本冲突时重读最新文档再追加，最多重试三次，
// 保证并发生成器各自的产出都不会丢。
func (s *CourseService) AppendGeneratedModules(ctx context.Context, courseID string, generated []model.Module) error {
	if len(generated) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < mergeMaxRetries; attempt++ {
		course, err := s.courseRepo.FindByID(courseID)
		if err != nil {
			return err
		}

		merged := appendQuizLast(course.Modules, generated)

		err = s.courseRepo.UpdateModules(courseID, merged, course.Version)
		if err == nil {
			s.invalidateCourse(ctx, courseID)
			return nil
		}
		if err != util.ErrCourseConflict {
			return err
		}

		lastErr = err
		logger.Log.Info("课程模块合并遇到版本冲突，重试",
			zap.String("course_id", courseID), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("课程模块合并重试次数耗尽: %w", lastErr)
}

// appendQuizLast 在已有模块之后追加新模块。
// 已有模块原样保留，新模块里的测验模块挪到新增部分的最后，
// 非测验的新模块保持生成顺序。
func appendQuizLast(existing model.ModuleList, generated []model.Module) model.ModuleList {
	merged := make(model.ModuleList, 0, len(existing)+len(generated))
	merged = append(merged, existing...)

	var quizzes model.ModuleList
	for _, m := range generated {
		if m.HasQuiz() {
			quizzes = append(quizzes, m)
		} else {
			merged = append(merged, m)
		}
	}
	return append(merged, quizzes...)
}

func (s *CourseService) cacheCourse(ctx context.Context, course *model.Course) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(course)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, courseCachePrefix+course.ID, data, courseCacheTTL).Err(); err != nil {
		logger.Log.Debug("课程缓存写入失败", zap.Error(err))
	}
}

func (s *CourseService) invalidateCourse(ctx context.Context, id string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, courseCachePrefix+id).Err(); err != nil {
		logger.Log.Debug("课程缓存失效失败", zap.Error(err))
	}
}
