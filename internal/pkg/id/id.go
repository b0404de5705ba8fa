package id

import (
	"strings"

	"github.com/google/uuid"
)

// New 生成新的UUID（string格式）
func New() string {
	return uuid.New().String()
}

// NewWithPrefix 生成带前缀的ID，如 task_xxxx
func NewWithPrefix(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// IsValid 校验ID（允许带前缀）
func IsValid(v string) bool {
	if i := strings.LastIndex(v, "_"); i >= 0 {
		v = v[i+1:]
	}
	_, err := uuid.Parse(v)
	return err == nil
}
