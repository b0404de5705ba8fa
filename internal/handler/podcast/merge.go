package podcast

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "podcaster/internal/pkg/http"
	podcastsvc "podcaster/internal/service/podcast"
)

// MergeRequest 合并请求
type MergeRequest struct {
	Strategy string `json:"strategy" binding:"omitempty,oneof=subprocess memory"` // 为空时使用服务端默认策略
}

// MergeData 合并响应数据
type MergeData struct {
	Artifact *podcastsvc.Artifact `json:"artifact"`
}

// Merge 合并最终音频
// @Summary      合并最终音频
// @Description  先按当前段落文件重新生成 merged_timeline.json，再按时间线顺序拼接段落音频
// @Tags         播客语音
// @Accept       json
// @Produce      json
// @Param        podcast_id  path      string        true   "播客ID"
// @Param        request     body      MergeRequest  false  "合并策略"
// @Success      200         {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"artifact\": {...}}}"
// @Failure      400         {object}  ErrorResponse  "请求参数错误"
// @Failure      404         {object}  ErrorResponse  "没有可用的段落"
// @Failure      500         {object}  ErrorResponse  "合并失败"
// @Router       /api/v1/podcasts/{podcast_id}/merge [post]
func (h *Handler) Merge(c *gin.Context) {
	podcastID, ok := bindPodcastID(c)
	if !ok {
		return
	}

	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(codeInvalidParams, "Invalid request body", err.Error()))
		return
	}

	artifact, err := h.podcastService.Merge(c.Request.Context(), podcastID, req.Strategy)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, MergeData{Artifact: artifact})
}
