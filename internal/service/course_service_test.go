package service

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.InitTestLogger()
}

func setupCourseService(t *testing.T) (*CourseService, *repository.CourseRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Course{}))

	repo := repository.NewCourseRepository(db)
	storage := NewStorageService(&config.Config{
		Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
	})
	return NewCourseService(repo, storage, nil), repo
}

func TestCreateCourseDefaults(t *testing.T) {
	svc, _ := setupCourseService(t)
	ctx := context.Background()

	course := &model.Course{Title: "  ", Category: "不存在的分类"}
	require.NoError(t, svc.CreateCourse(ctx, course))

	assert.Equal(t, "新课程", course.Title)
	assert.Equal(t, model.CategoryGeneral, course.Category)
	assert.Equal(t, model.DefaultThumbnail, course.Thumbnail)
	assert.Equal(t, model.DefaultPassThreshold, course.PassThreshold)
	assert.NotNil(t, course.Modules)
}

func TestGetCourseNotFound(t *testing.T) {
	svc, _ := setupCourseService(t)

	_, err := svc.GetCourse(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestUpdateModulesVersionConflict(t *testing.T) {
	_, repo := setupCourseService(t)

	course := &model.Course{Title: "课程"}
	require.NoError(t, repo.Create(course))

	modules := model.ModuleList{{Title: "文档", Kind: model.ModuleDocument}}

	// 版本匹配时写入成功并自增
	require.NoError(t, repo.UpdateModules(course.ID, modules, 0))

	// 拿着过期版本再写，报冲突
	err := repo.UpdateModules(course.ID, modules, 0)
	assert.ErrorIs(t, err, util.ErrCourseConflict)

	// 用最新版本写入成功
	require.NoError(t, repo.UpdateModules(course.ID, modules, 1))

	// 课程不存在时区分返回
	err = repo.UpdateModules("missing", modules, 0)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestAppendGeneratedModulesQuizLast(t *testing.T) {
	svc, repo := setupCourseService(t)
	ctx := context.Background()

	course := &model.Course{
		Title: "课程",
		Modules: model.ModuleList{
			{ID: "doc-1", Title: "原有文档", Kind: model.ModuleDocument},
			{ID: "quiz-1", Title: "原有测验", Kind: model.ModuleDocument,
				Quiz: []model.QuizQuestion{{Question: "Q", Options: []string{"A", "B"}}}},
		},
	}
	require.NoError(t, svc.CreateCourse(ctx, course))

	generated := []model.Module{
		{ID: "audio-1", Title: "播客", Kind: model.ModuleAudio},
		{ID: "quiz-2", Title: "新测验", Kind: model.ModuleDocument,
			Quiz: []model.QuizQuestion{{Question: "Q2", Options: []string{"A", "B"}}}},
	}
	require.NoError(t, svc.AppendGeneratedModules(ctx, course.ID, generated))

	updated, err := repo.FindByID(course.ID)
	require.NoError(t, err)
	require.Len(t, updated.Modules, 4)

	// 已有模块位置一个不动（包括中间的已有测验），
	// 新增模块整体排在后面且新增的测验模块在新增部分的最后
	assert.Equal(t, "doc-1", updated.Modules[0].ID)
	assert.Equal(t, "quiz-1", updated.Modules[1].ID)
	assert.Equal(t, "audio-1", updated.Modules[2].ID)
	assert.Equal(t, "quiz-2", updated.Modules[3].ID)
}

func TestAppendGeneratedModulesKeepsExistingOrder(t *testing.T) {
	// 已有列表中间夹着测验模块时也不允许重排
	existing := model.ModuleList{
		{ID: "m1", Title: "第一节", Kind: model.ModuleDocument},
		{ID: "m2", Title: "随堂测验", Kind: model.ModuleDocument,
			Quiz: []model.QuizQuestion{{Question: "Q", Options: []string{"A", "B"}}}},
		{ID: "m3", Title: "第二节", Kind: model.ModuleDocument},
	}
	generated := []model.Module{
		{ID: "new-quiz", Title: "新测验", Kind: model.ModuleDocument,
			Quiz: []model.QuizQuestion{{Question: "Q2", Options: []string{"A", "B"}}}},
		{ID: "new-audio", Title: "播客", Kind: model.ModuleAudio},
	}

	merged := appendQuizLast(existing, generated)
	require.Len(t, merged, 5)
	assert.Equal(t, "m1", merged[0].ID)
	assert.Equal(t, "m2", merged[1].ID)
	assert.Equal(t, "m3", merged[2].ID)
	assert.Equal(t, "new-audio", merged[3].ID)
	assert.Equal(t, "new-quiz", merged[4].ID)
}

func TestAppendGeneratedModulesOnlyAppends(t *testing.T) {
	svc, repo := setupCourseService(t)
	ctx := context.Background()

	course := &model.Course{
		Title:   "课程",
		Modules: model.ModuleList{{ID: "keep", Title: "保留", Kind: model.ModuleDocument}},
	}
	require.NoError(t, svc.CreateCourse(ctx, course))

	// 两轮生成依次合并，第一轮的产出不能被第二轮覆盖
	require.NoError(t, svc.AppendGeneratedModules(ctx, course.ID,
		[]model.Module{{ID: "gen-1", Title: "第一轮", Kind: model.ModuleAudio}}))
	require.NoError(t, svc.AppendGeneratedModules(ctx, course.ID,
		[]model.Module{{ID: "gen-2", Title: "第二轮", Kind: model.ModuleVideo}}))

	updated, err := repo.FindByID(course.ID)
	require.NoError(t, err)
	require.Len(t, updated.Modules, 3)
	assert.Equal(t, "keep", updated.Modules[0].ID)
	assert.Equal(t, "gen-1", updated.Modules[1].ID)
	assert.Equal(t, "gen-2", updated.Modules[2].ID)
}

func TestAppendGeneratedModulesEmpty(t *testing.T) {
	svc, _ := setupCourseService(t)
	assert.NoError(t, svc.AppendGeneratedModules(context.Background(), "any", nil))
}

func TestDeleteCourse(t *testing.T) {
	svc, repo := setupCourseService(t)
	ctx := context.Background()

	course := &model.Course{Title: "将被删除"}
	require.NoError(t, svc.CreateCourse(ctx, course))

	require.NoError(t, svc.DeleteCourse(ctx, course.ID))

	_, err := repo.FindByID(course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	assert.ErrorIs(t, svc.DeleteCourse(ctx, course.ID), util.ErrCourseNotFound)
}
