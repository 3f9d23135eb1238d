package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	textModel  = "gemini-2.5-flash"
	ttsModel   = "gemini-2.5-flash-preview-tts"
	imageModel = "gemini-2.5-flash-image"
	videoModel = "veo-3.1-fast-generate-preview"

	// 各生成任务送入模型的课程内容前缀长度（字符）
	metadataContentLimit = 15000
	quizContentLimit     = 20000
	podcastContentLimit  = 10000
	diagramContentLimit  = 1000
	videoContentLimit    = 500

	// 视频生成是长轮询任务，5秒一次最多60次，总计5分钟
	videoPollInterval    = 5 * time.Second
	videoPollMaxAttempts = 60
)

// GeminiService 封装所有对Gemini API的调用。
// 未配置API Key时client为nil，每个方法入口统一检查。
type GeminiService struct {
	client *genai.Client
	cfg    *config.GeminiConfig
}

// NewGeminiService 创建AI服务。Key缺失不算启动错误，
// 课程的普通增删改查不依赖AI，只有生成类接口会报 ErrMissingAPIKey。
func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig) *GeminiService {
	s := &GeminiService{cfg: cfg}
	if cfg.APIKey == "" {
		logger.Log.Warn("未配置 GEMINI_API_KEY，AI生成功能不可用")
		return s
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.Log.Error("Gemini客户端初始化失败", zap.Error(err))
		return s
	}
	s.client = client
	return s
}

func (s *GeminiService) ensureClient() error {
	if s.client == nil {
		return util.ErrMissingAPIKey
	}
	return nil
}

// Available AI功能是否可用
func (s *GeminiService) Available() bool {
	return s.client != nil
}

// truncateRunes 按字符截断，避免把多字节字符切坏
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// ExtractTextFromFile 从上传的文件中提取教学文本。
// 支持PDF、常见图片和音频，其它类型返回 ErrUnsupportedMedia。
func (s *GeminiService) ExtractTextFromFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := s.ensureClient(); err != nil {
		return "", err
	}

	mimeType = util.NormalizeMimeType(mimeType)
	if !util.IsExtractableMimeType(mimeType) {
		return "", util.ErrUnsupportedMedia
	}

	if util.IsAudioMimeType(mimeType) {
		return s.TranscribeAudio(ctx, data, mimeType)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText("提取这份文件中的全部文字内容，保留原有的章节结构。只输出提取的文本，不要任何解释。"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := s.client.Models.GenerateContent(ctx, textModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("文本提取失败: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// TranscribeAudio 把音频转写为带说话人标注的文字稿
func (s *GeminiService) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := s.ensureClient(); err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, util.NormalizeMimeType(mimeType)),
		genai.NewPartFromText("把这段音频完整转写为文字。只输出转写内容本身。"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := s.client.Models.GenerateContent(ctx, textModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("音频转写失败: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// GenerateCourseMetadata 从课程内容推断标题、简介和分类。
// 用结构化输出约束模型返回合法JSON，分类由 NormalizeCategory 兜底。
func (s *GeminiService) GenerateCourseMetadata(ctx context.Context, content string) (*model.CourseMetadata, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`根据下面的培训材料内容，生成课程元信息：
- title: 简洁有吸引力的课程标题（中文，不超过40字）
- description: 两三句话的课程简介
- category: 从 General、Safety、HR、Sales、Technology 中选择最贴切的一个

材料内容：
%s`, truncateRunes(content, metadataContentLimit))

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       {Type: genai.TypeString},
				"description": {Type: genai.TypeString},
				"category": {
					Type: genai.TypeString,
					Enum: []string{
						model.CategoryGeneral, model.CategorySafety,
						model.CategoryHR, model.CategorySales, model.CategoryTechnology,
					},
				},
			},
			Required: []string{"title", "description", "category"},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, textModel, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("课程元信息生成失败: %w", err)
	}

	var meta model.CourseMetadata
	if err := unmarshalJSONResponse(resp.Text(), &meta); err != nil {
		return nil, fmt.Errorf("课程元信息解析失败: %w", err)
	}
	meta.Category = model.NormalizeCategory(meta.Category)
	return &meta, nil
}

// GenerateQuiz 根据课程内容出3到8道单选题。
// 模型偶尔会返回脏数据（选项为null、下标越界），统一交给 ParseQuizJSON 清洗。
func (s *GeminiService) GenerateQuiz(ctx context.Context, content string) ([]model.QuizQuestion, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`根据下面的课程内容出3到8道单选测验题，考察学员对核心知识点的掌握。
每道题4个选项，correctAnswerIndex 是正确选项的下标（从0开始）。

课程内容：
%s`, truncateRunes(content, quizContentLimit))

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question":           {Type: genai.TypeString},
					"options":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"correctAnswerIndex": {Type: genai.TypeInteger},
				},
				Required: []string{"question", "options", "correctAnswerIndex"},
			},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, textModel, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("测验生成失败: %w", err)
	}

	questions, err := model.ParseQuizJSON([]byte(resp.Text()))
	if err != nil {
		return nil, fmt.Errorf("测验JSON解析失败: %w", err)
	}
	return questions, nil
}

// GeneratePodcast 两步生成播客：先写双人对话脚本，再做多说话人TTS。
// 返回完整的WAV文件内容。
func (s *GeminiService) GeneratePodcast(ctx context.Context, content string) ([]byte, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}

	scriptPrompt := fmt.Sprintf(`根据下面的课程内容，写一段两位主持人（小雅和志强）的播客对话脚本，
用轻松自然的口吻把核心知识点讲清楚，时长控制在三分钟左右。
每一行以"小雅："或"志强："开头。只输出脚本本身。

课程内容：
%s`, truncateRunes(content, podcastContentLimit))

	scriptResp, err := s.client.Models.GenerateContent(ctx, textModel, genai.Text(scriptPrompt), nil)
	if err != nil {
		return nil, fmt.Errorf("播客脚本生成失败: %w", err)
	}
	script := strings.TrimSpace(scriptResp.Text())
	if script == "" {
		return nil, fmt.Errorf("播客脚本为空")
	}

	ttsCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{
				SpeakerVoiceConfigs: []*genai.SpeakerVoiceConfig{
					{
						Speaker: "小雅",
						VoiceConfig: &genai.VoiceConfig{
							PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: "Kore"},
						},
					},
					{
						Speaker: "志强",
						VoiceConfig: &genai.VoiceConfig{
							PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: "Fenrir"},
						},
					},
				},
			},
		},
	}

	ttsResp, err := s.client.Models.GenerateContent(ctx, ttsModel, genai.Text(script), ttsCfg)
	if err != nil {
		return nil, fmt.Errorf("播客语音合成失败: %w", err)
	}

	pcm := inlineData(ttsResp)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("语音合成未返回音频数据")
	}

	// TTS返回裸PCM，包上WAV头才能直接播放
	return util.PCMToWAV(pcm, util.TTSSampleRate, util.TTSChannels), nil
}

// GenerateDiagram 生成课程概念示意图，返回图片字节和MIME类型
func (s *GeminiService) GenerateDiagram(ctx context.Context, content string) ([]byte, string, error) {
	if err := s.ensureClient(); err != nil {
		return nil, "", err
	}

	prompt := fmt.Sprintf(`为下面的课程内容画一张清晰的概念示意图，
扁平化信息图风格，突出核心概念之间的关系，文字标注用中文。

课程内容：
%s`, truncateRunes(content, diagramContentLimit))

	resp, err := s.client.Models.GenerateContent(ctx, imageModel, genai.Text(prompt), nil)
	if err != nil {
		return nil, "", fmt.Errorf("示意图生成失败: %w", err)
	}

	// 图片模型的返回里文本和图片part混在一起，找出图片part
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return part.InlineData.Data, mimeType, nil
			}
		}
	}
	return nil, "", fmt.Errorf("示意图生成未返回图片数据")
}

// GenerateVideo 生成课程短视频。Veo只对付费套餐开放，未开启
// paid_tier 直接返回 ErrPaidTierRequired，不发起任务。
// 轮询有上限，超出返回 ErrVideoTimeout。
func (s *GeminiService) GenerateVideo(ctx context.Context, content string) ([]byte, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	if !s.cfg.PaidTier {
		return nil, util.ErrPaidTierRequired
	}

	prompt := fmt.Sprintf("为这门培训课程制作一段简短的宣传介绍视频，画面专业现代。课程主题：%s",
		truncateRunes(content, videoContentLimit))

	operation, err := s.client.Models.GenerateVideos(ctx, videoModel, prompt, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("视频生成任务创建失败: %w", err)
	}

	for attempt := 0; !operation.Done; attempt++ {
		if attempt >= videoPollMaxAttempts {
			return nil, util.ErrVideoTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(videoPollInterval):
		}

		operation, err = s.client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("视频生成状态查询失败: %w", err)
		}
	}

	if operation.Response == nil || len(operation.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("视频生成未返回结果")
	}

	video := operation.Response.GeneratedVideos[0].Video
	if video == nil {
		return nil, fmt.Errorf("视频生成未返回结果")
	}
	if len(video.VideoBytes) > 0 {
		return video.VideoBytes, nil
	}
	if video.URI != "" {
		return s.downloadVideo(ctx, video.URI)
	}
	return nil, fmt.Errorf("视频生成未返回结果")
}

// downloadVideo 下载生成的视频文件，文件接口要求把Key拼在URL上
func (s *GeminiService) downloadVideo(ctx context.Context, uri string) ([]byte, error) {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	url := uri + sep + "key=" + s.cfg.APIKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("视频下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("视频下载失败: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// unmarshalJSONResponse 解析模型返回的JSON。即使开了结构化输出，
// 个别情况下返回仍会带markdown代码块包裹，先剥掉再解析。
func unmarshalJSONResponse(text string, v interface{}) error {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return json.Unmarshal([]byte(strings.TrimSpace(text)), v)
}

// inlineData 取出响应中第一个内联二进制part
func inlineData(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}
