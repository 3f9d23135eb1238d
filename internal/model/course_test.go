package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModuleKind(t *testing.T) {
	tests := []struct {
		input string
		want  ModuleKind
	}{
		{"VIDEO", ModuleVideo},
		{"video", ModuleVideo},
		{" Video ", ModuleVideo},
		{"MODULE_VIDEO", ModuleVideo},
		{"AUDIO", ModuleAudio},
		{"audio", ModuleAudio},
		{"DOCUMENT", ModuleDocument},
		{"", ModuleDocument},
		{"something-else", ModuleDocument},
		{"pdf", ModuleDocument},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseModuleKind(tt.input), "input=%q", tt.input)
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategorySafety, NormalizeCategory("Safety"))
	assert.Equal(t, CategoryGeneral, NormalizeCategory(""))
	assert.Equal(t, CategoryGeneral, NormalizeCategory("safety"))
	assert.Equal(t, CategoryGeneral, NormalizeCategory("美食"))
	assert.Equal(t, CategoryHR, NormalizeCategory(" HR "))
}

func TestSanitizeQuiz(t *testing.T) {
	questions := []QuizQuestion{
		{Question: "有效题目", Options: []string{"A", "B", "C"}, CorrectAnswerIndex: 1},
		{Question: "", Options: []string{"A", "B"}, CorrectAnswerIndex: 0},
		{Question: "没有选项", Options: nil, CorrectAnswerIndex: 0},
		{Question: "全是空选项", Options: []string{"", "  "}, CorrectAnswerIndex: 0},
		{Question: "下标越界", Options: []string{"A", "B"}, CorrectAnswerIndex: 9},
		{Question: "负数下标", Options: []string{"A", "B"}, CorrectAnswerIndex: -3},
	}

	out := SanitizeQuiz(questions)
	require.Len(t, out, 3)

	assert.Equal(t, "有效题目", out[0].Question)
	assert.Equal(t, 1, out[0].CorrectAnswerIndex)

	assert.Equal(t, "下标越界", out[1].Question)
	assert.Equal(t, 1, out[1].CorrectAnswerIndex)

	assert.Equal(t, "负数下标", out[2].Question)
	assert.Equal(t, 0, out[2].CorrectAnswerIndex)
}

func TestSanitizeQuizNeverNil(t *testing.T) {
	assert.NotNil(t, SanitizeQuiz(nil))
	assert.Empty(t, SanitizeQuiz(nil))
}

func TestParseQuizJSONTolerant(t *testing.T) {
	// 选项里混入null和数字，下标是字符串化之前的数字，单条缺题干
	data := []byte(`[
		{"question": "Q1", "options": ["A", null, "B", 3], "correctAnswerIndex": 2},
		{"question": "", "options": ["X"], "correctAnswerIndex": 0},
		{"question": "Q2", "options": ["A", "B"]}
	]`)

	questions, err := ParseQuizJSON(data)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	assert.Equal(t, []string{"A", "B", "3"}, questions[0].Options)
	assert.Equal(t, 2, questions[0].CorrectAnswerIndex)

	// 缺失的下标按0处理
	assert.Equal(t, "Q2", questions[1].Question)
	assert.Equal(t, 0, questions[1].CorrectAnswerIndex)
}

func TestParseQuizJSONInvalid(t *testing.T) {
	_, err := ParseQuizJSON([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestModuleNormalize(t *testing.T) {
	m := Module{
		Title: "  标题  ",
		Kind:  "video_module",
	}
	m.Normalize()

	assert.NotEmpty(t, m.ID, "应自动补ID")
	assert.Equal(t, "标题", m.Title)
	assert.Equal(t, ModuleVideo, m.Kind)
	assert.NotNil(t, m.Quiz, "quiz必须是数组而不是null")
}

func TestModuleListScanNormalizes(t *testing.T) {
	// 历史脏数据：kind非法、quiz缺失、选项越界
	raw := `[
		{"id": "m1", "title": "视频", "kind": "youtube-video"},
		{"id": "m2", "title": "测验", "kind": "DOCUMENT",
		 "quiz": [{"question": "Q", "options": ["A"], "correctAnswerIndex": 5}]}
	]`

	var list ModuleList
	require.NoError(t, list.Scan([]byte(raw)))
	require.Len(t, list, 2)

	assert.Equal(t, ModuleVideo, list[0].Kind)
	assert.NotNil(t, list[0].Quiz)
	assert.Empty(t, list[0].Quiz)

	require.Len(t, list[1].Quiz, 1)
	assert.Equal(t, 0, list[1].Quiz[0].CorrectAnswerIndex)
}

func TestModuleListScanNil(t *testing.T) {
	var list ModuleList
	require.NoError(t, list.Scan(nil))
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestModuleListValueRoundTrip(t *testing.T) {
	list := ModuleList{
		{Title: "文档", Kind: "unknown"},
	}

	value, err := list.Value()
	require.NoError(t, err)

	var decoded ModuleList
	require.NoError(t, decoded.Scan([]byte(value.(string))))
	require.Len(t, decoded, 1)
	assert.Equal(t, ModuleDocument, decoded[0].Kind)
	assert.NotEmpty(t, decoded[0].ID)
	assert.NotNil(t, decoded[0].Quiz)
}

func TestModuleListOversized(t *testing.T) {
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'x'
	}

	list := ModuleList{
		{ID: "small", TextContent: "short"},
		{ID: "big", TextContent: string(big)},
	}
	assert.Equal(t, []string{"big"}, list.Oversized(50))
	assert.Nil(t, list.Oversized(1000))
}

func TestGenerationOptionsAny(t *testing.T) {
	assert.False(t, GenerationOptions{}.Any())
	assert.True(t, GenerationOptions{Quiz: true}.Any())
	assert.True(t, GenerationOptions{Video: true}.Any())
}
