// Package vonage is a thin client for the Vonage Messages API, used here
// for outbound SMS.
package vonage

import (
	"net/http"
)

type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(vonageJWT, geospecificMessagesAPIURL, messagesAPIURL, senderNumber string, httpClient http.Client) Client {
	client := Client{
		config: Config{
			VonageJWT:                 vonageJWT,
			GeospecificMessagesAPIURL: geospecificMessagesAPIURL,
			MessagesAPIURL:            messagesAPIURL,
			SenderNumber:              senderNumber,
		},
		httpClient: &httpClient,
	}

	return client
}
