package vonage

type Config struct {
	VonageJWT                 string
	GeospecificMessagesAPIURL string
	MessagesAPIURL            string
	SenderNumber              string
}

type SMSMessage struct {
	To          string `json:"to"`
	From        string `json:"from"`
	Channel     string `json:"channel"`
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

type MessageResponse struct {
	MessageUUID string `json:"message_uuid"`
}
