package response

// Response is the envelope every API endpoint returns. The admin views key off
// `success` and render `message` as an inline alert on failure.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK wraps payload data in a success envelope
func OK(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// OKMessage returns a success envelope with a human-readable message
func OKMessage(message string, data interface{}) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// Fail returns an error envelope wrapping the failure reason
func Fail(message string) Response {
	return Response{
		Success: false,
		Message: message,
	}
}
