package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/tracing"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// 提取文本太短时补充说明，避免下游生成器拿到几个字就开工
	minExtractedChars = 100

	// 整个后台生成流程的总时限。视频轮询本身最多5分钟，
	// 加上其它生成器和上传，15分钟足够宽裕。
	processingTimeout = 15 * time.Minute

	generationStatusPrefix = "generation:"
	generationStatusTTL    = 24 * time.Hour
)

// CourseAI AI生成能力的消费方接口，便于测试时注入假实现
type CourseAI interface {
	ExtractTextFromFile(ctx context.Context, data []byte, mimeType string) (string, error)
	TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error)
	GenerateCourseMetadata(ctx context.Context, content string) (*model.CourseMetadata, error)
	GenerateQuiz(ctx context.Context, content string) ([]model.QuizQuestion, error)
	GeneratePodcast(ctx context.Context, content string) ([]byte, error)
	GenerateDiagram(ctx context.Context, content string) ([]byte, string, error)
	GenerateVideo(ctx context.Context, content string) ([]byte, error)
}

// AssetStore 生成资产的存储接口
type AssetStore interface {
	UploadCourseAsset(ctx context.Context, courseID, filename string, data []byte, contentType string) (string, error)
}

// ModuleMerger 模块合并接口
type ModuleMerger interface {
	AppendGeneratedModules(ctx context.Context, courseID string, generated []model.Module) error
}

// GenerationState 后台生成任务的状态
type GenerationState string

const (
	GenerationRunning   GenerationState = "running"
	GenerationCompleted GenerationState = "completed"
	GenerationFailed    GenerationState = "failed"
)

// GenerationStatus 一次后台生成任务的可观测状态。
// 接口是即发即忘的，前端靠轮询这个状态知道进度。
type GenerationStatus struct {
	CourseID   string            `json:"courseId"`
	State      GenerationState   `json:"state"`
	Requested  []string          `json:"requested"`
	Completed  []string          `json:"completed"`
	Failed     map[string]string `json:"failed,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

// ProcessingService 课程内容生成的编排器：
// 提取与元信息推断是同步的，四个生成器在后台并发跑，
// 全部结束后把产出一次性合并进课程文档。
type ProcessingService struct {
	ai     CourseAI
	store  AssetStore
	merger ModuleMerger
	redis  *redis.Client

	mu       sync.RWMutex
	statuses map[string]*GenerationStatus
}

func NewProcessingService(ai CourseAI, store AssetStore, merger ModuleMerger, rdb *redis.Client) *ProcessingService {
	return &ProcessingService{
		ai:       ai,
		store:    store,
		merger:   merger,
		redis:    rdb,
		statuses: make(map[string]*GenerationStatus),
	}
}

// ExtractCourseInfo 从上传文件提取文本并推断课程元信息。
// 提取失败退回以文件名构造的占位内容，元信息推断失败退回默认值，
// 只有Key未配置才让整个操作失败，管理员必须看到那个提示。
func (s *ProcessingService) ExtractCourseInfo(ctx context.Context, filename string, data []byte, mimeType string) (*model.CourseInfo, error) {
	text, err := s.ai.ExtractTextFromFile(ctx, data, mimeType)
	if err != nil {
		if errors.Is(err, util.ErrMissingAPIKey) {
			return nil, err
		}
		logger.Log.Warn("文本提取失败，使用占位内容",
			zap.String("filename", filename), zap.Error(err))
		text = ""
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < minExtractedChars {
		text = strings.TrimSpace(text + "\n\n课程材料：" + filename)
	}

	info := &model.CourseInfo{
		Title:         "新课程",
		Description:   truncateRunes(text, 200),
		Category:      model.CategoryGeneral,
		ExtractedText: text,
	}

	meta, err := s.ai.GenerateCourseMetadata(ctx, text)
	if err != nil {
		logger.Log.Warn("课程元信息推断失败，使用默认值", zap.Error(err))
		return info, nil
	}
	if strings.TrimSpace(meta.Title) != "" {
		info.Title = meta.Title
	}
	if strings.TrimSpace(meta.Description) != "" {
		info.Description = meta.Description
	}
	info.Category = model.NormalizeCategory(meta.Category)
	return info, nil
}

// TranscribeAudio 音频转写的直通入口
func (s *ProcessingService) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	return s.ai.TranscribeAudio(ctx, data, mimeType)
}

// ProcessCourseInBackground 启动后台生成。立即返回，调用方通过
// GetGenerationStatus 观察进度。各生成器相互独立，单个失败不影响其它。
func (s *ProcessingService) ProcessCourseInBackground(courseID, content string, opts model.GenerationOptions) {
	if !opts.Any() {
		return
	}

	requested := make([]string, 0, 4)
	if opts.Podcast {
		requested = append(requested, "podcast")
	}
	if opts.Diagram {
		requested = append(requested, "diagram")
	}
	if opts.Video {
		requested = append(requested, "video")
	}
	if opts.Quiz {
		requested = append(requested, "quiz")
	}

	s.setStatus(&GenerationStatus{
		CourseID:  courseID,
		State:     GenerationRunning,
		Requested: requested,
		Completed: []string{},
		Failed:    map[string]string{},
		StartedAt: time.Now(),
	})

	go s.runGeneration(courseID, content, opts)
}

func (s *ProcessingService) runGeneration(courseID, content string, opts model.GenerationOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	// 固定槽位收集产出，保证合并顺序稳定：播客、示意图、视频在前，测验最后
	var (
		mu      sync.Mutex
		results = make([]*model.Module, 4)
		wg      sync.WaitGroup
	)

	run := func(name string, slot int, fn func(ctx context.Context) (*model.Module, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			genCtx, span := tracing.StartGenerationSpan(ctx, courseID, name)
			defer span.End()

			start := time.Now()
			module, err := fn(genCtx)
			duration := time.Since(start)
			monitoring.GenerationDuration.WithLabelValues(name).Observe(duration.Seconds())

			if err != nil {
				span.RecordError(err)
				monitoring.GenerationCounter.WithLabelValues(name, "failed").Inc()
				logger.Log.Error("课程模块生成失败",
					zap.String("course_id", courseID),
					zap.String("module", name),
					zap.Duration("duration", duration),
					zap.Error(err))
				s.markFailed(courseID, name, err)
				return
			}

			monitoring.GenerationCounter.WithLabelValues(name, "success").Inc()
			logger.Log.Info("课程模块生成完成",
				zap.String("course_id", courseID),
				zap.String("module", name),
				zap.Duration("duration", duration))
			s.markCompleted(courseID, name)

			if module != nil {
				mu.Lock()
				results[slot] = module
				mu.Unlock()
			}
		}()
	}

	if opts.Podcast {
		run("podcast", 0, func(ctx context.Context) (*model.Module, error) {
			return s.generatePodcastModule(ctx, courseID, content)
		})
	}
	if opts.Diagram {
		run("diagram", 1, func(ctx context.Context) (*model.Module, error) {
			return s.generateDiagramModule(ctx, courseID, content)
		})
	}
	if opts.Video {
		run("video", 2, func(ctx context.Context) (*model.Module, error) {
			return s.generateVideoModule(ctx, courseID, content)
		})
	}
	if opts.Quiz {
		run("quiz", 3, func(ctx context.Context) (*model.Module, error) {
			return s.generateQuizModule(ctx, content)
		})
	}

	wg.Wait()

	var generated []model.Module
	for _, m := range results {
		if m != nil {
			generated = append(generated, *m)
		}
	}

	if len(generated) > 0 {
		if err := s.merger.AppendGeneratedModules(ctx, courseID, generated); err != nil {
			logger.Log.Error("生成模块合并失败",
				zap.String("course_id", courseID), zap.Error(err))
			s.markFailed(courseID, "merge", err)
		}
	}

	s.finish(courseID)
}

func (s *ProcessingService) generatePodcastModule(ctx context.Context, courseID, content string) (*model.Module, error) {
	wav, err := s.ai.GeneratePodcast(ctx, content)
	if err != nil {
		return nil, err
	}

	url, err := s.store.UploadCourseAsset(ctx, courseID, "podcast.wav", wav, "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("播客音频上传失败: %w", err)
	}

	return &model.Module{
		Title:           "课程播客",
		Description:     "两位主持人对谈形式的课程内容音频解读",
		Kind:            model.ModuleAudio,
		ContentURL:      url,
		DurationSeconds: probeDuration(wav, "podcast-*.wav"),
	}, nil
}

func (s *ProcessingService) generateDiagramModule(ctx context.Context, courseID, content string) (*model.Module, error) {
	img, mimeType, err := s.ai.GenerateDiagram(ctx, content)
	if err != nil {
		return nil, err
	}

	ext := "png"
	if parts := strings.SplitN(mimeType, "/", 2); len(parts) == 2 && parts[1] != "" {
		ext = parts[1]
	}
	url, err := s.store.UploadCourseAsset(ctx, courseID, "diagram."+ext, img, mimeType)
	if err != nil {
		return nil, fmt.Errorf("示意图上传失败: %w", err)
	}

	return &model.Module{
		Title:       "概念示意图",
		Description: "课程核心概念的可视化图解",
		Kind:        model.ModuleDocument,
		ContentURL:  url,
	}, nil
}

func (s *ProcessingService) generateVideoModule(ctx context.Context, courseID, content string) (*model.Module, error) {
	videoData, err := s.ai.GenerateVideo(ctx, content)
	if err != nil {
		return nil, err
	}

	url, err := s.store.UploadCourseAsset(ctx, courseID, "intro.mp4", videoData, "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("视频上传失败: %w", err)
	}

	return &model.Module{
		Title:           "课程介绍视频",
		Description:     "AI生成的课程简介短片",
		Kind:            model.ModuleVideo,
		ContentURL:      url,
		DurationSeconds: probeDuration(videoData, "intro-*.mp4"),
	}, nil
}

// generateQuizModule 生成测验模块。清洗后没有合格题目时返回nil，
// 不往课程里塞空测验。
func (s *ProcessingService) generateQuizModule(ctx context.Context, content string) (*model.Module, error) {
	questions, err := s.ai.GenerateQuiz(ctx, content)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		logger.Log.Warn("测验生成结果清洗后为空，跳过测验模块")
		return nil, nil
	}

	return &model.Module{
		Title:       "课程测验",
		Description: "检验学习效果的随堂测验",
		Kind:        model.ModuleDocument,
		Quiz:        questions,
	}, nil
}

// probeDuration 把媒体数据写入临时文件后用ffprobe读时长。
// 探测失败只损失时长展示，不影响模块生成。
func probeDuration(data []byte, pattern string) float64 {
	tmp, err := os.CreateTemp("", filepath.Base(pattern))
	if err != nil {
		return 0
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0
	}
	tmp.Close()

	return float64(util.ProbeMediaDuration(tmp.Name()))
}

// GetGenerationStatus 查询某门课程最近一次后台生成的状态。
// 返回的是快照副本，后台goroutine还在更新原对象。
func (s *ProcessingService) GetGenerationStatus(ctx context.Context, courseID string) (*GenerationStatus, bool) {
	s.mu.RLock()
	status, ok := s.statuses[courseID]
	var snapshot GenerationStatus
	if ok {
		snapshot = *status
		snapshot.Completed = append([]string(nil), status.Completed...)
		snapshot.Failed = make(map[string]string, len(status.Failed))
		for k, v := range status.Failed {
			snapshot.Failed[k] = v
		}
	}
	s.mu.RUnlock()
	if ok {
		return &snapshot, true
	}

	// 进程重启后内存状态丢失，退回redis镜像
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, generationStatusPrefix+courseID).Result()
		if err == nil {
			var st GenerationStatus
			if err := json.Unmarshal([]byte(cached), &st); err == nil {
				return &st, true
			}
		}
	}
	return nil, false
}

func (s *ProcessingService) setStatus(status *GenerationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.CourseID] = status
	s.mirrorStatus(status)
}

func (s *ProcessingService) markCompleted(courseID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[courseID]; ok {
		status.Completed = append(status.Completed, name)
		s.mirrorStatus(status)
	}
}

func (s *ProcessingService) markFailed(courseID, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[courseID]; ok {
		status.Failed[name] = err.Error()
		s.mirrorStatus(status)
	}
}

func (s *ProcessingService) finish(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[courseID]
	if !ok {
		return
	}
	now := time.Now()
	status.FinishedAt = &now
	if len(status.Failed) > 0 {
		status.State = GenerationFailed
	} else {
		status.State = GenerationCompleted
	}
	s.mirrorStatus(status)
}

// mirrorStatus 把状态异步镜像到redis，调用方必须已持有锁
func (s *ProcessingService) mirrorStatus(status *GenerationStatus) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	key := generationStatusPrefix + status.CourseID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.redis.Set(ctx, key, data, generationStatusTTL).Err(); err != nil {
			logger.Log.Debug("生成状态镜像写入失败", zap.Error(err))
		}
	}()
}
