package podcast

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "podcaster/internal/pkg/http"
	"podcaster/internal/pkg/tts"
)

// ListVoicesRequest 查询音色请求
type ListVoicesRequest struct {
	Provider string `uri:"provider" binding:"required"` // provider key（必填）
	Language string `form:"language"`                   // 语言筛选（可选）
}

// VoiceListData 音色列表响应数据
type VoiceListData struct {
	Provider string           `json:"provider"`
	Voices   []tts.VoiceModel `json:"voices"`
}

// ListVoices 查询 provider 的音色
// @Summary      查询音色
// @Description  列出 TTS provider 可用的音色，可按语言筛选
// @Tags         TTS
// @Produce      json
// @Param        provider  path      string  true   "provider key，如 elevenlabs"
// @Param        language  query     string  false  "语言，如 en、zh"
// @Success      200       {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"provider\": \"elevenlabs\", \"voices\": [...]}}"
// @Failure      400       {object}  ErrorResponse  "provider 不存在或不支持"
// @Failure      502       {object}  ErrorResponse  "厂商接口错误"
// @Router       /api/v1/tts/{provider}/voices [get]
func (h *Handler) ListVoices(c *gin.Context) {
	var req ListVoicesRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(codeInvalidParams, "Invalid provider", err.Error()))
		return
	}
	req.Language = c.Query("language")

	voices, err := h.podcastService.ListVoices(c.Request.Context(), req.Provider, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	if voices == nil {
		voices = []tts.VoiceModel{}
	}
	success(c, http.StatusOK, VoiceListData{Provider: req.Provider, Voices: voices})
}
