package podcast

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"podcaster/internal/model/podcast"
)

// TimelineData 时间线响应数据
type TimelineData struct {
	Timeline []podcast.TimelineEntry `json:"timeline"`
	Duration float64                 `json:"duration"` // 总时长（秒）
}

// BuildTimeline 生成时间线
// @Summary      生成时间线
// @Description  扫描段落目录下的时间戳文件，计算每段起止时间并写入 merged_timeline.json
// @Tags         播客语音
// @Produce      json
// @Param        podcast_id  path      string  true  "播客ID"
// @Success      200         {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"timeline\": [...], \"duration\": 3.5}}"
// @Failure      400         {object}  ErrorResponse  "请求参数错误"
// @Failure      404         {object}  ErrorResponse  "没有可用的段落"
// @Failure      500         {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/podcasts/{podcast_id}/timeline [post]
func (h *Handler) BuildTimeline(c *gin.Context) {
	podcastID, ok := bindPodcastID(c)
	if !ok {
		return
	}

	entries, err := h.podcastService.BuildTimeline(c.Request.Context(), podcastID)
	if err != nil {
		writeError(c, err)
		return
	}

	var duration float64
	if n := len(entries); n > 0 {
		duration = entries[n-1].EndTime
	}
	success(c, http.StatusOK, TimelineData{Timeline: entries, Duration: duration})
}
