package podcast

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"podcaster/internal/model/podcast"
)

// SegmentStatusData 段落状态响应数据
type SegmentStatusData struct {
	Segments []podcast.SegmentStatus `json:"segments"`
	Total    int                     `json:"total"`
	Success  int                     `json:"success"`
}

// SegmentStatuses 查询段落文件状态
// @Summary      查询段落文件状态
// @Description  按时间线检查每个段落的音频与时间戳文件：都存在为 success，只有一个为 failed，都不存在为 pending
// @Tags         播客语音
// @Produce      json
// @Param        podcast_id  path      string  true  "播客ID"
// @Success      200         {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"segments\": [...], \"total\": 3, \"success\": 3}}"
// @Failure      404         {object}  ErrorResponse  "时间线不存在"
// @Failure      500         {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/podcasts/{podcast_id}/segments/status [get]
func (h *Handler) SegmentStatuses(c *gin.Context) {
	podcastID, ok := bindPodcastID(c)
	if !ok {
		return
	}

	statuses, err := h.podcastService.SegmentStatuses(c.Request.Context(), podcastID)
	if err != nil {
		writeError(c, err)
		return
	}

	data := SegmentStatusData{Segments: statuses, Total: len(statuses)}
	for _, s := range statuses {
		if s.Status == podcast.SegmentFileStatusSuccess {
			data.Success++
		}
	}
	success(c, http.StatusOK, data)
}
