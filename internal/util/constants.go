package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeAudio       = "audio/"
	MimeImage       = "image/"
	MimeVideo       = "video/"
	MimePDF         = "application/pdf"
	MimeOctetStream = "application/octet-stream"

	// 普通文件与音频文件的上传上限（字节）
	MaxUploadSize      = 10 * 1024 * 1024
	MaxAudioUploadSize = 50 * 1024 * 1024

	// 文档库单字段的实际可写上限约1MB，超过约900KB就该走对象存储
	MaxInlineFieldBytes = 900 * 1024
)
