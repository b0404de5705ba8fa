package podcast

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"podcaster/internal/pkg/storage"
)

const (
	podcastsRoot = "podcasts"
	segmentsDir  = "segments"

	// TimelineFileName 时间线文件名，位于段落目录的上一级
	TimelineFileName = "merged_timeline.json"

	alignmentExt = ".json"
)

// SegmentsDir podcasts/<id>/segments
func SegmentsDir(podcastID string) string {
	return storage.Join(podcastsRoot, podcastID, segmentsDir)
}

// TimelineKey podcasts/<id>/merged_timeline.json
func TimelineKey(podcastID string) string {
	return storage.Join(podcastsRoot, podcastID, TimelineFileName)
}

// FinalKey podcasts/<id>/<id>_final.<ext>
func FinalKey(podcastID, ext string) string {
	return storage.Join(podcastsRoot, podcastID, fmt.Sprintf("%s_final.%s", podcastID, strings.TrimPrefix(ext, ".")))
}

// ValidatePodcastID podcast id 会直接拼进存储路径
func ValidatePodcastID(podcastID string) error {
	if podcastID == "" {
		return fmt.Errorf("%w: podcast id is required", ErrInvalidRequest)
	}
	if strings.ContainsAny(podcastID, `/\`) || podcastID == "." || podcastID == ".." {
		return fmt.Errorf("%w: invalid podcast id %q", ErrInvalidRequest, podcastID)
	}
	return nil
}

// EncodeSpeaker 生成可以安全放进文件名的 speaker
// 保留 [A-Za-z0-9-]，其余字节编码为 ~XX，可以无损还原
func EncodeSpeaker(speaker string) string {
	var b strings.Builder
	for i := 0; i < len(speaker); i++ {
		c := speaker[i]
		if isSafeByte(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "~%02X", c)
	}
	return b.String()
}

// DecodeSpeaker EncodeSpeaker 的逆操作
func DecodeSpeaker(encoded string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c != '~' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(encoded) {
			return "", fmt.Errorf("truncated escape in %q", encoded)
		}
		v, err := strconv.ParseUint(encoded[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid escape in %q: %w", encoded, err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}

func isSafeByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

// segmentBaseName <speakerSafe>_<stamp>
func segmentBaseName(speaker string, stamp int64) string {
	return EncodeSpeaker(speaker) + "_" + strconv.FormatInt(stamp, 10)
}

// parseSegmentBaseName 从最后一个下划线拆分 speaker 与时间戳
func parseSegmentBaseName(base string) (speaker string, stamp int64, ok bool) {
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return "", 0, false
	}
	stamp, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	speaker, err = DecodeSpeaker(base[:i])
	if err != nil {
		return "", 0, false
	}
	return speaker, stamp, true
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
