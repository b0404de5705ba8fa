package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("storage: object not found")

// Storage 存储接口
// key 统一使用 "/" 分隔，与底层实现（本地目录 / OSS 前缀）无关
type Storage interface {
	// Upload 写入对象，返回可公开访问的URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 读取对象；不存在时返回 ErrNotFound
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// List 列出目录下的直接子文件名（不含目录前缀），按名称升序
	List(ctx context.Context, dir string) ([]string, error)

	// Delete 删除对象，不存在视为成功
	Delete(ctx context.Context, key string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetFileInfo 获取对象信息
	GetFileInfo(ctx context.Context, key string) (*FileInfo, error)

	// PublicURL 生成公开访问URL（不检查对象是否存在）
	PublicURL(key string) string

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// LocalPather 由本地文件系统实现，返回 key 对应的绝对路径
// ffmpeg 等外部进程可以直接读写该路径
type LocalPather interface {
	LocalPath(key string) (string, error)
}

// FileInfo 文件信息
type FileInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// Join 拼接 key
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

// ReadAll 读取整个对象
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// WriteBytes 写入字节数据
func WriteBytes(ctx context.Context, s Storage, key string, data []byte, contentType string) (string, error) {
	return s.Upload(ctx, key, bytes.NewReader(data), contentType)
}

// ContentTypeByExt 根据扩展名推断 Content-Type
func ContentTypeByExt(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ExtByContentType 根据 Content-Type 推断扩展名（不含点），未知时返回 fallback
func ExtByContentType(contentType, fallback string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/l16":
		return "wav"
	case "audio/ogg", "audio/opus":
		return "ogg"
	case "audio/flac":
		return "flac"
	case "audio/aac":
		return "aac"
	}
	return fallback
}

var contentTypes = map[string]string{
	".json": "application/json",
	".txt":  "text/plain",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
}
