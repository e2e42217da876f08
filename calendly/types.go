package calendly

import "encoding/json"

// EventInviteeCreated is the only webhook event this service acts on.
const EventInviteeCreated = "invitee.created"

// WebhookEvent is the envelope Calendly posts to the webhook endpoint.
type WebhookEvent struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

// Payload carries the booking details. Every field is optional on the wire;
// extraction walks an explicit ordered list of candidates instead of
// trusting any single one to be present.
type Payload struct {
	Event               *ScheduledEvent  `json:"event,omitempty"`
	EventType           *EventType       `json:"event_type,omitempty"`
	Invitee             *Invitee         `json:"invitee,omitempty"`
	QuestionsAndAnswers []QuestionAnswer `json:"questions_and_answers,omitempty"`

	// raw holds the original JSON this payload was decoded from. Some
	// integrations bury the phone number in fields outside this schema, and
	// the deep scan needs to see those too.
	raw []byte
}

// UnmarshalJSON keeps a copy of the source document alongside the decoded
// fields so ExtractPhoneDeep can scan data the schema drops.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Payload(a)
	p.raw = append([]byte(nil), data...)
	return nil
}

// ScheduledEvent identifies the booked slot.
type ScheduledEvent struct {
	UUID      string `json:"uuid,omitempty"`
	URI       string `json:"uri,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EventType describes the kind of appointment that was booked.
type EventType struct {
	Name string `json:"name,omitempty"`
	UUID string `json:"uuid,omitempty"`
}

// Invitee is the person who booked.
type Invitee struct {
	Name               string `json:"name,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	Email              string `json:"email,omitempty"`
	SMSReminderNumber  string `json:"sms_reminder_number,omitempty"`
	TextReminderNumber string `json:"text_reminder_number,omitempty"`
	PhoneNumber        string `json:"phone_number,omitempty"`
}

// QuestionAnswer is one free-text booking form entry.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Contact is a successfully extracted, normalized booking contact.
type Contact struct {
	Phone      string
	ClientName string
	EventID    string
	EventTitle string
	StartTime  string
	EndTime    string
	BookedAt   string
}
