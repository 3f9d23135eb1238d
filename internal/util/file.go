package util

import (
	"path/filepath"
	"strings"
)

// 可被文本提取直接处理的文件类型，与模型的多模态能力对齐
var extractableMimeTypes = map[string]bool{
	MimePDF:      true,
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"text/plain": true,
}

// IsExtractableMimeType 判断文件类型能否送入文本提取
func IsExtractableMimeType(mimeType string) bool {
	mt := NormalizeMimeType(mimeType)
	if extractableMimeTypes[mt] {
		return true
	}
	return strings.HasPrefix(mt, MimeAudio)
}

func IsAudioMimeType(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), MimeAudio)
}

func IsImageMimeType(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), MimeImage)
}

// NormalizeMimeType 去掉参数部分并转小写，如 "audio/mpeg; charset=binary" -> "audio/mpeg"
func NormalizeMimeType(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// GuessMimeTypeByExt 根据扩展名推断常见类型，浏览器上传偶尔只给octet-stream
func GuessMimeTypeByExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".txt", ".md":
		return "text/plain"
	case ".mp4":
		return "video/mp4"
	default:
		return MimeOctetStream
	}
}
