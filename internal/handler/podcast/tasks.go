package podcast

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"podcaster/internal/model/podcast"
	httputil "podcaster/internal/pkg/http"
)

// GetTaskRequest 查询任务请求
type GetTaskRequest struct {
	TaskID string `uri:"task_id" binding:"required"` // 任务ID（必填）
}

// TaskData 任务响应数据
type TaskData struct {
	Task *podcast.SynthesisTask `json:"task"`
}

// TaskListData 任务列表响应数据
type TaskListData struct {
	Tasks []*podcast.SynthesisTask `json:"tasks"`
	Total int                      `json:"total"`
}

// GetTask 查询合成任务
// @Summary      查询合成任务
// @Description  查询异步合成任务的状态与进度，完成后包含段落结果与汇总
// @Tags         合成任务
// @Produce      json
// @Param        task_id  path      string  true  "任务ID"
// @Success      200      {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"task\": {...}}}"
// @Failure      404      {object}  ErrorResponse  "任务不存在"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/synthesis-tasks/{task_id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	var req GetTaskRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(codeInvalidParams, "Invalid task_id", err.Error()))
		return
	}

	task, err := h.podcastService.GetTask(c.Request.Context(), req.TaskID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, TaskData{Task: task})
}

// ListTasks 查询播客的合成任务
// @Summary      查询播客的合成任务
// @Description  按创建时间倒序返回播客的所有合成任务
// @Tags         合成任务
// @Produce      json
// @Param        podcast_id  path      string  true  "播客ID"
// @Success      200         {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"tasks\": [...], \"total\": 1}}"
// @Failure      400         {object}  ErrorResponse  "请求参数错误"
// @Failure      500         {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/podcasts/{podcast_id}/tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	podcastID, ok := bindPodcastID(c)
	if !ok {
		return
	}

	tasks, err := h.podcastService.ListTasks(c.Request.Context(), podcastID)
	if err != nil {
		writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*podcast.SynthesisTask{}
	}
	success(c, http.StatusOK, TaskListData{Tasks: tasks, Total: len(tasks)})
}
