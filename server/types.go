package server

// ErrorResponse is the JSON error envelope for every endpoint.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ManualReplyRequest is the body of POST /crm/conversations/.../reply.
type ManualReplyRequest struct {
	Message string `json:"message"`
	SentBy  string `json:"sent_by"`
}

func errorJSON(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
