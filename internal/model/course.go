package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ModuleKind 课程模块的类型。历史数据里这个字段来源很杂（前端枚举、
// 导入脚本、AI生成），所以所有入口统一走 ParseModuleKind 归一化。
type ModuleKind string

const (
	ModuleVideo    ModuleKind = "VIDEO"
	ModuleAudio    ModuleKind = "AUDIO"
	ModuleDocument ModuleKind = "DOCUMENT"
)

// ParseModuleKind 把任意字符串归一化为合法的模块类型。
// 无法识别的值一律按 DOCUMENT 处理。
func ParseModuleKind(v string) ModuleKind {
	s := strings.ToUpper(strings.TrimSpace(v))
	switch {
	case strings.Contains(s, string(ModuleVideo)):
		return ModuleVideo
	case strings.Contains(s, string(ModuleAudio)):
		return ModuleAudio
	default:
		return ModuleDocument
	}
}

// 课程分类的固定枚举
const (
	CategoryGeneral    = "General"
	CategorySafety     = "Safety"
	CategoryHR         = "HR"
	CategorySales      = "Sales"
	CategoryTechnology = "Technology"
)

var validCategories = map[string]bool{
	CategoryGeneral:    true,
	CategorySafety:     true,
	CategoryHR:         true,
	CategorySales:      true,
	CategoryTechnology: true,
}

// NormalizeCategory 分类不在枚举内时回退到 General
func NormalizeCategory(v string) string {
	v = strings.TrimSpace(v)
	if validCategories[v] {
		return v
	}
	return CategoryGeneral
}

// QuizQuestion 单选题
type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// SanitizeQuiz 清洗题目列表：丢弃缺题干或无选项的条目，
// 丢弃空选项，并把正确答案下标收敛到合法区间。返回值永远非nil。
func SanitizeQuiz(questions []QuizQuestion) []QuizQuestion {
	out := make([]QuizQuestion, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		opts := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				continue
			}
			opts = append(opts, opt)
		}
		if len(opts) == 0 {
			continue
		}
		idx := q.CorrectAnswerIndex
		if idx < 0 {
			idx = 0
		}
		if idx > len(opts)-1 {
			idx = len(opts) - 1
		}
		out = append(out, QuizQuestion{
			Question:           q.Question,
			Options:            opts,
			CorrectAnswerIndex: idx,
		})
	}
	return out
}

// rawQuizQuestion 容忍AI返回里的脏数据：选项可能混入null、数字，
// correctAnswerIndex可能缺失或不是数字
type rawQuizQuestion struct {
	Question           string      `json:"question"`
	Options            []any       `json:"options"`
	CorrectAnswerIndex json.Number `json:"correctAnswerIndex"`
}

// ParseQuizJSON 解析AI返回的题目JSON并立即清洗。
// 单个条目非法只丢弃该条目，不让整批失败。
func ParseQuizJSON(data []byte) ([]QuizQuestion, error) {
	var raw []rawQuizQuestion
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	questions := make([]QuizQuestion, 0, len(raw))
	for _, r := range raw {
		opts := make([]string, 0, len(r.Options))
		for _, o := range r.Options {
			if o == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(o))
			if s == "" {
				continue
			}
			opts = append(opts, s)
		}
		idx := 0
		if n, err := r.CorrectAnswerIndex.Int64(); err == nil {
			idx = int(n)
		}
		questions = append(questions, QuizQuestion{
			Question:           r.Question,
			Options:            opts,
			CorrectAnswerIndex: idx,
		})
	}
	return SanitizeQuiz(questions), nil
}

// Module 一个课程模块。生成管线只会追加模块，从不原地修改。
type Module struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Kind            ModuleKind     `json:"kind"`
	ContentURL      string         `json:"contentUrl,omitempty"`
	TextContent     string         `json:"textContent,omitempty"`
	DurationSeconds float64        `json:"durationSeconds,omitempty"`
	Quiz            []QuizQuestion `json:"quiz"`
}

// Normalize 模块入库前的统一清洗：补ID、归一化类型、保证quiz非nil。
// 下游播放器会无条件遍历quiz字段，这里是它永远是数组的唯一保证点。
func (m *Module) Normalize() {
	if strings.TrimSpace(m.ID) == "" {
		m.ID = GenerateUUID()
	}
	m.Title = strings.TrimSpace(m.Title)
	m.Kind = ParseModuleKind(string(m.Kind))
	m.ContentURL = strings.TrimSpace(m.ContentURL)
	m.TextContent = strings.TrimSpace(m.TextContent)
	m.Quiz = SanitizeQuiz(m.Quiz)
}

// HasQuiz 是否为测验模块（合并时测验模块永远排在最后）
func (m *Module) HasQuiz() bool {
	return len(m.Quiz) > 0
}

// ModuleList 以JSON整列存储，课程文档的读-改-写都以它为单位
type ModuleList []Module

// Value 写库前逐模块清洗
func (l ModuleList) Value() (driver.Value, error) {
	normalized := make(ModuleList, len(l))
	copy(normalized, l)
	for i := range normalized {
		normalized[i].Normalize()
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 读库后同样清洗一遍，历史脏数据也会被修正
func (l *ModuleList) Scan(value interface{}) error {
	if value == nil {
		*l = ModuleList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported modules column type %T", value)
	}

	if len(data) == 0 {
		*l = ModuleList{}
		return nil
	}

	var modules ModuleList
	if err := json.Unmarshal(data, &modules); err != nil {
		return err
	}
	for i := range modules {
		modules[i].Normalize()
	}
	if modules == nil {
		modules = ModuleList{}
	}
	*l = modules
	return nil
}

// Oversized 返回内联内容超过limit字节的模块ID。
// 生成的二进制资产必须走对象存储，内联大字段只告警不拦截。
func (l ModuleList) Oversized(limit int) []string {
	var ids []string
	for _, m := range l {
		if len(m.TextContent) > limit || len(m.ContentURL) > limit {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

const (
	DefaultPassThreshold = 70
	DefaultThumbnail     = "https://picsum.photos/400/225"
)

// Course 课程文档。modules列只能整体读-改-写，
// version列用于乐观并发控制（见 CourseRepository.UpdateModules）。
// swagger:model Course
type Course struct {
	UUIDBase
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Category      string     `gorm:"size:50;not null;default:'General'" json:"category"`
	Thumbnail     string     `gorm:"size:512" json:"thumbnail"`
	PassThreshold int        `gorm:"not null;default:70" json:"passThreshold"`
	Version       int        `gorm:"not null;default:0" json:"-"`
	Modules       ModuleList `gorm:"type:json" json:"modules"`
}

func (Course) TableName() string {
	return "courses"
}

// GenerationOptions 后台生成开关，四个开关互相独立
type GenerationOptions struct {
	Quiz    bool `json:"quiz"`
	Podcast bool `json:"podcast"`
	Diagram bool `json:"diagram"`
	Video   bool `json:"video"`
}

func (o GenerationOptions) Any() bool {
	return o.Quiz || o.Podcast || o.Diagram || o.Video
}

// CourseMetadata AI推断出的课程元信息
type CourseMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CourseInfo 提取阶段的完整返回：元信息加提取文本
type CourseInfo struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	ExtractedText string `json:"extractedText"`
}
