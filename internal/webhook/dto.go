package webhook

// whatsappForm is the carrier's inbound message webhook payload.
type whatsappForm struct {
	From             string `form:"From"`
	Body             string `form:"Body"`
	MessageSid       string `form:"MessageSid"`
	ProfileName      string `form:"ProfileName"`
	NumMedia         string `form:"NumMedia"`
	MediaURL0        string `form:"MediaUrl0"`
	MediaContentType string `form:"MediaContentType0"`
}

// callStatusForm is the carrier's call status callback payload.
type callStatusForm struct {
	CallSid      string `form:"CallSid"`
	CallStatus   string `form:"CallStatus"`
	CallDuration string `form:"CallDuration"`
}

// engineCallback is the voice engine's post-call webhook payload.
type engineCallback struct {
	Type string `json:"type"`
	Data struct {
		ConversationID string `json:"conversation_id"`
		Status         string `json:"status"`
	} `json:"data"`
}
