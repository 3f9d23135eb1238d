package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAI 按需覆盖各个生成函数，未覆盖的返回错误
type fakeAI struct {
	extract  func(content []byte, mimeType string) (string, error)
	metadata func(content string) (*model.CourseMetadata, error)
	quiz     func(content string) ([]model.QuizQuestion, error)
	podcast  func(content string) ([]byte, error)
	diagram  func(content string) ([]byte, string, error)
	video    func(content string) ([]byte, error)
}

func (f *fakeAI) ExtractTextFromFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	if f.extract == nil {
		return "", errors.New("extract not stubbed")
	}
	return f.extract(data, mimeType)
}

func (f *fakeAI) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	return f.ExtractTextFromFile(ctx, data, mimeType)
}

func (f *fakeAI) GenerateCourseMetadata(ctx context.Context, content string) (*model.CourseMetadata, error) {
	if f.metadata == nil {
		return nil, errors.New("metadata not stubbed")
	}
	return f.metadata(content)
}

func (f *fakeAI) GenerateQuiz(ctx context.Context, content string) ([]model.QuizQuestion, error) {
	if f.quiz == nil {
		return nil, errors.New("quiz not stubbed")
	}
	return f.quiz(content)
}

func (f *fakeAI) GeneratePodcast(ctx context.Context, content string) ([]byte, error) {
	if f.podcast == nil {
		return nil, errors.New("podcast not stubbed")
	}
	return f.podcast(content)
}

func (f *fakeAI) GenerateDiagram(ctx context.Context, content string) ([]byte, string, error) {
	if f.diagram == nil {
		return nil, "", errors.New("diagram not stubbed")
	}
	return f.diagram(content)
}

func (f *fakeAI) GenerateVideo(ctx context.Context, content string) ([]byte, error) {
	if f.video == nil {
		return nil, errors.New("video not stubbed")
	}
	return f.video(content)
}

type fakeStore struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeStore) UploadCourseAsset(ctx context.Context, courseID, filename string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return "/uploads/courses/" + courseID + "/" + filename, nil
}

type fakeMerger struct {
	mu     sync.Mutex
	merged [][]model.Module
}

func (f *fakeMerger) AppendGeneratedModules(ctx context.Context, courseID string, generated []model.Module) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = append(f.merged, generated)
	return nil
}

func (f *fakeMerger) calls() [][]model.Module {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merged
}

func waitForFinish(t *testing.T, svc *ProcessingService, courseID string) *GenerationStatus {
	t.Helper()
	var status *GenerationStatus
	require.Eventually(t, func() bool {
		st, ok := svc.GetGenerationStatus(context.Background(), courseID)
		if ok && st.FinishedAt != nil {
			status = st
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestExtractCourseInfo(t *testing.T) {
	ai := &fakeAI{
		extract: func([]byte, string) (string, error) {
			return strings.Repeat("内容", 100), nil
		},
		metadata: func(string) (*model.CourseMetadata, error) {
			return &model.CourseMetadata{Title: "安全培训", Description: "描述", Category: "Safety"}, nil
		},
	}
	svc := NewProcessingService(ai, &fakeStore{}, &fakeMerger{}, nil)

	info, err := svc.ExtractCourseInfo(context.Background(), "safety.pdf", []byte("pdf"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "安全培训", info.Title)
	assert.Equal(t, model.CategorySafety, info.Category)
	assert.NotContains(t, info.ExtractedText, "课程材料：")
}

func TestExtractCourseInfoAugmentsShortText(t *testing.T) {
	ai := &fakeAI{
		extract: func([]byte, string) (string, error) { return "只有几个字", nil },
		metadata: func(content string) (*model.CourseMetadata, error) {
			return &model.CourseMetadata{Title: "T", Description: "D", Category: "General"}, nil
		},
	}
	svc := NewProcessingService(ai, &fakeStore{}, &fakeMerger{}, nil)

	info, err := svc.ExtractCourseInfo(context.Background(), "slide.png", []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Contains(t, info.ExtractedText, "只有几个字")
	assert.Contains(t, info.ExtractedText, "课程材料：slide.png")
}

func TestExtractCourseInfoMetadataFallback(t *testing.T) {
	ai := &fakeAI{
		extract: func([]byte, string) (string, error) {
			return strings.Repeat("培训资料内容。", 50), nil
		},
		metadata: func(string) (*model.CourseMetadata, error) {
			return nil, errors.New("model overloaded")
		},
	}
	svc := NewProcessingService(ai, &fakeStore{}, &fakeMerger{}, nil)

	info, err := svc.ExtractCourseInfo(context.Background(), "hr.pdf", []byte("pdf"), "application/pdf")
	require.NoError(t, err, "元信息失败不应让整个提取失败")
	assert.Equal(t, "新课程", info.Title)
	assert.Equal(t, model.CategoryGeneral, info.Category)
	assert.NotEmpty(t, info.Description)
	assert.LessOrEqual(t, len([]rune(info.Description)), 200)
}

func TestExtractCourseInfoFallsBackToPlaceholder(t *testing.T) {
	// 不支持的类型走占位内容，整个操作仍然成功
	ai := &fakeAI{
		extract: func([]byte, string) (string, error) { return "", util.ErrUnsupportedMedia },
		metadata: func(string) (*model.CourseMetadata, error) {
			return nil, errors.New("nothing to infer")
		},
	}
	svc := NewProcessingService(ai, &fakeStore{}, &fakeMerger{}, nil)

	info, err := svc.ExtractCourseInfo(context.Background(), "handbook.epub", []byte("bin"), "application/epub+zip")
	require.NoError(t, err)
	assert.Equal(t, "新课程", info.Title)
	assert.Contains(t, info.ExtractedText, "课程材料：handbook.epub")
}

func TestExtractCourseInfoMissingAPIKey(t *testing.T) {
	// Key未配置必须原样上抛，不能吞成占位内容
	ai := &fakeAI{
		extract: func([]byte, string) (string, error) { return "", util.ErrMissingAPIKey },
	}
	svc := NewProcessingService(ai, &fakeStore{}, &fakeMerger{}, nil)

	_, err := svc.ExtractCourseInfo(context.Background(), "a.pdf", []byte("pdf"), "application/pdf")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)
}

func TestBackgroundGenerationFailureIsolation(t *testing.T) {
	// 播客失败不影响测验，合并只收到成功的产出
	ai := &fakeAI{
		podcast: func(string) ([]byte, error) { return nil, errors.New("tts unavailable") },
		quiz: func(string) ([]model.QuizQuestion, error) {
			return []model.QuizQuestion{{Question: "Q", Options: []string{"A", "B"}}}, nil
		},
	}
	merger := &fakeMerger{}
	svc := NewProcessingService(ai, &fakeStore{}, merger, nil)

	svc.ProcessCourseInBackground("course-1", "内容", model.GenerationOptions{Quiz: true, Podcast: true})
	status := waitForFinish(t, svc, "course-1")

	assert.Equal(t, GenerationFailed, status.State)
	assert.Contains(t, status.Completed, "quiz")
	assert.Contains(t, status.Failed, "podcast")

	calls := merger.calls()
	require.Len(t, calls, 1, "所有生成器结束后只合并一次")
	require.Len(t, calls[0], 1)
	assert.True(t, calls[0][0].HasQuiz())
}

func TestBackgroundGenerationAllModules(t *testing.T) {
	ai := &fakeAI{
		podcast: func(string) ([]byte, error) { return []byte("wav-data"), nil },
		diagram: func(string) ([]byte, string, error) { return []byte("png-data"), "image/png", nil },
		video:   func(string) ([]byte, error) { return []byte("mp4-data"), nil },
		quiz: func(string) ([]model.QuizQuestion, error) {
			return []model.QuizQuestion{{Question: "Q", Options: []string{"A", "B"}}}, nil
		},
	}
	store := &fakeStore{}
	merger := &fakeMerger{}
	svc := NewProcessingService(ai, store, merger, nil)

	svc.ProcessCourseInBackground("course-2", "内容",
		model.GenerationOptions{Quiz: true, Podcast: true, Diagram: true, Video: true})
	status := waitForFinish(t, svc, "course-2")

	assert.Equal(t, GenerationCompleted, status.State)
	assert.ElementsMatch(t, []string{"podcast", "diagram", "video", "quiz"}, status.Completed)
	assert.Empty(t, status.Failed)

	calls := merger.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 4)

	// 合并顺序固定：播客、示意图、视频、测验
	assert.Equal(t, model.ModuleAudio, calls[0][0].Kind)
	assert.Equal(t, model.ModuleDocument, calls[0][1].Kind)
	assert.Equal(t, model.ModuleVideo, calls[0][2].Kind)
	assert.True(t, calls[0][3].HasQuiz())
}

func TestBackgroundGenerationEmptyQuizSkipped(t *testing.T) {
	// 清洗后没有合格题目时不生成测验模块，也不触发合并
	ai := &fakeAI{
		quiz: func(string) ([]model.QuizQuestion, error) { return nil, nil },
	}
	merger := &fakeMerger{}
	svc := NewProcessingService(ai, &fakeStore{}, merger, nil)

	svc.ProcessCourseInBackground("course-3", "内容", model.GenerationOptions{Quiz: true})
	status := waitForFinish(t, svc, "course-3")

	assert.Equal(t, GenerationCompleted, status.State)
	assert.Contains(t, status.Completed, "quiz")
	assert.Empty(t, merger.calls())
}

func TestBackgroundGenerationNoOptions(t *testing.T) {
	svc := NewProcessingService(&fakeAI{}, &fakeStore{}, &fakeMerger{}, nil)
	svc.ProcessCourseInBackground("course-4", "内容", model.GenerationOptions{})

	_, ok := svc.GetGenerationStatus(context.Background(), "course-4")
	assert.False(t, ok, "没有勾选任何生成项时不应登记任务")
}

func TestGenerationStatusConcurrentAccess(t *testing.T) {
	// 状态登记、进度更新和查询并发进行，race检测器下必须干净
	svc := NewProcessingService(&fakeAI{}, &fakeStore{}, &fakeMerger{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				svc.setStatus(&GenerationStatus{
					CourseID:  "course-race",
					State:     GenerationRunning,
					Completed: []string{},
					Failed:    map[string]string{},
					StartedAt: time.Now(),
				})
				svc.markCompleted("course-race", "quiz")
				svc.GetGenerationStatus(context.Background(), "course-race")
			}
		}()
	}
	wg.Wait()

	status, ok := svc.GetGenerationStatus(context.Background(), "course-race")
	require.True(t, ok)
	assert.Equal(t, GenerationRunning, status.State)
}

func TestGetGenerationStatusUnknown(t *testing.T) {
	svc := NewProcessingService(&fakeAI{}, &fakeStore{}, &fakeMerger{}, nil)
	_, ok := svc.GetGenerationStatus(context.Background(), "never-started")
	assert.False(t, ok)
}
