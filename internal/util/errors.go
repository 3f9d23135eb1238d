package util

import "errors"

var (
	ErrUserNotFound    = errors.New("用户不存在")
	ErrEmailRegistered = errors.New("该邮箱已被注册")

	ErrCourseNotFound = errors.New("course not found")
	// 乐观锁冲突：读到的version和写入时不一致，说明有并发写入
	ErrCourseConflict = errors.New("course was modified concurrently")

	// 未配置Gemini API Key。必须和其它AI失败区分开，
	// 同步调用方要把这个错误原样展示给管理员
	ErrMissingAPIKey = errors.New("未配置 Gemini API Key，请在配置文件或环境变量 GEMINI_API_KEY 中设置")
	// 视频生成需要付费套餐，在发起轮询前就拦截
	ErrPaidTierRequired = errors.New("视频生成需要付费版 Gemini API Key，请开启 gemini.paid_tier 并使用付费Key")
	// 视频生成轮询超出上限，与服务端错误区分
	ErrVideoTimeout = errors.New("视频生成超时，请稍后重试")

	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrFileTooLarge     = errors.New("file size exceeds limit")
)
