package podcast

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"podcaster/internal/model/podcast"
	httputil "podcaster/internal/pkg/http"
	podcastsvc "podcaster/internal/service/podcast"
)

// SynthesizeRequest 批量合成请求
type SynthesizeRequest struct {
	Segments     []podcast.Segment `json:"segments" binding:"required,min=1"` // 段落列表（必填）
	ProviderID   string            `json:"provider_id"`                       // 默认 provider（可选）
	VoiceMap     map[string]string `json:"voice_map"`                         // speaker -> voice_id
	Concurrency  int               `json:"concurrency" binding:"gte=0"`       // 并发数（可选）
	MaxRetries   *int              `json:"max_retries" binding:"omitempty,gte=0"`
	OutputFormat string            `json:"output_format"` // mp3 / wav（可选）
	Async        bool              `json:"async"`         // true 时返回任务ID
}

// SynthesizeTaskData 异步合成响应数据
type SynthesizeTaskData struct {
	Task *podcast.SynthesisTask `json:"task"`
}

// Synthesize 批量合成段落音频
// @Summary      批量合成段落音频
// @Description  按段落调用 TTS 厂商生成音频与时间戳文件。async=true 时立即返回任务，可通过任务接口查询进度
// @Tags         播客语音
// @Accept       json
// @Produce      json
// @Param        podcast_id  path      string             true  "播客ID"
// @Param        request     body      SynthesizeRequest  true  "合成请求"
// @Success      200         {object}  map[string]interface{}  "同步合成结果"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"success\": true, \"results\": [...], \"summary\": {...}}}"
// @Success      202         {object}  map[string]interface{}  "异步任务"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"task\": {...}}}"
// @Failure      400         {object}  ErrorResponse  "请求参数错误"
// @Failure      500         {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/podcasts/{podcast_id}/synthesis [post]
func (h *Handler) Synthesize(c *gin.Context) {
	podcastID, ok := bindPodcastID(c)
	if !ok {
		return
	}

	var req SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(codeInvalidParams, "Invalid request body", err.Error()))
		return
	}

	svcReq := &podcastsvc.SynthesisRequest{
		PodcastID:    podcastID,
		Segments:     req.Segments,
		ProviderID:   req.ProviderID,
		VoiceMap:     req.VoiceMap,
		Concurrency:  req.Concurrency,
		MaxRetries:   req.MaxRetries,
		OutputFormat: req.OutputFormat,
	}

	ctx := c.Request.Context()
	if req.Async {
		task, err := h.podcastService.StartSynthesis(ctx, svcReq)
		if err != nil {
			writeError(c, err)
			return
		}
		success(c, http.StatusAccepted, SynthesizeTaskData{Task: task})
		return
	}

	outcome, err := h.podcastService.Synthesize(ctx, svcReq)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, outcome)
}
