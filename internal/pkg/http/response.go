package http

// CodeSuccess 成功响应的 code，错误码均为 5 位（4xxxx / 5xxxx）
const CodeSuccess = 0

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// SuccessResponse 成功响应，data 为各接口的 XxxData 结构
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func NewSuccessResponse(data any) *SuccessResponse {
	return &SuccessResponse{Code: CodeSuccess, Message: "success", Data: data}
}

// NewErrorResponse detail 为空时不输出
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{Code: code, Message: message}
	if len(detail) > 0 {
		resp.Detail = detail[0]
	}
	return resp
}
