package twilio

// messageResponse is the subset of the Messages API response we use.
type messageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// apiError is Twilio's error envelope for non-2xx responses.
type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// StatusCallback is the form-encoded delivery webhook Twilio posts back.
// Kept here so the HTTP handler and this client agree on field names.
type StatusCallback struct {
	MessageSID    string
	MessageStatus string
	ErrorCode     string
	From          string
	To            string
	Body          string
}
