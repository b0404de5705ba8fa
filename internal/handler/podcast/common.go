package podcast

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"podcaster/internal/model/podcast"
	httputil "podcaster/internal/pkg/http"
	"podcaster/internal/pkg/tts"
	podcastsvc "podcaster/internal/service/podcast"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// 错误码
const (
	codeInvalidParams   = 40001
	codeUnsupported     = 40002
	codeNotFound        = 40401
	codeConflict        = 40901
	codeInternal        = 50001
	codeConcatenation   = 50002
	codeProviderFailure = 50201
)

// PodcastURI 路径中的 podcast_id
type PodcastURI struct {
	PodcastID string `uri:"podcast_id" binding:"required"` // 播客ID（必填）
}

func bindPodcastID(c *gin.Context) (string, bool) {
	var uri PodcastURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(codeInvalidParams, "Invalid podcast_id", err.Error()))
		return "", false
	}
	if err := podcastsvc.ValidatePodcastID(uri.PodcastID); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(codeInvalidParams, "Invalid podcast_id", err.Error()))
		return "", false
	}
	return uri.PodcastID, true
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, httputil.NewSuccessResponse(data))
}

// writeError 按错误类型映射 HTTP 状态与错误码
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, codeInternal
	message := err.Error()
	detail := ""

	var (
		configErr   *tts.ConfigError
		providerErr *tts.ProviderError
		concatErr   *podcastsvc.ConcatenationError
	)
	switch {
	case errors.Is(err, podcastsvc.ErrInvalidRequest),
		errors.Is(err, podcastsvc.ErrNoSegments),
		errors.Is(err, podcastsvc.ErrUnknownStrategy),
		errors.As(err, &configErr):
		status, code = http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, podcastsvc.ErrVoicesUnsupported):
		status, code = http.StatusBadRequest, codeUnsupported
	case errors.Is(err, podcastsvc.ErrTimelineNotFound),
		errors.Is(err, podcastsvc.ErrEmptyTimeline),
		errors.Is(err, podcast.ErrTaskNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, podcast.ErrInvalidTransition):
		status, code = http.StatusConflict, codeConflict
	case errors.As(err, &concatErr):
		code = codeConcatenation
		message = "Failed to concatenate audio"
		detail = concatErr.Error()
	case errors.As(err, &providerErr):
		status, code = http.StatusBadGateway, codeProviderFailure
		detail = string(providerErr.Kind)
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	c.JSON(status, httputil.NewErrorResponse(code, message, detail))
}
