package protocol

type GetResponseBodyParams struct {
	RequestID string `json:"requestId"`
}

type ResponseBody struct {
	Body          string `json:"body"`
	Base64Encoded bool   `json:"base64Encoded"`
}
