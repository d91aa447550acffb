package httpapi

// Result 成功响应：{"success":true,"data":...}
type Result[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// ErrorResult 失败响应：{"error":"<提示>","errors":{字段:提示}}
type ErrorResult struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func Fail(message string) ErrorResult {
	return ErrorResult{Error: message}
}

func FailFields(message string, fields map[string]string) ErrorResult {
	return ErrorResult{Error: message, Errors: fields}
}

// Page 列表响应
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}
