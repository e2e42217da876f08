package calendly

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BookNudge-AI/booknudge-go/phone"
)

// ErrMissingPhone means no candidate field or free-text match normalized to
// a valid phone number.
var ErrMissingPhone = errors.New("calendly: no valid phone number in payload")

// DefaultClientName is used when the payload carries no usable name.
const DefaultClientName = "Valued Client"

// Regexes for the raw-scan fallback, tried in order of specificity.
var (
	e164Pattern = regexp.MustCompile(`\+\d{7,15}`)
	usPattern   = regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}`)
	barePattern = regexp.MustCompile(`\b1?\d{10}\b`)
)

// ExtractContact pulls a normalized phone number, client name and event
// metadata out of a booking payload. Candidate phone sources are tried in
// priority order; the first one that normalizes to a valid number wins.
// Uses the deep extractor so numbers buried in unschema'd fields still land.
func ExtractContact(p Payload) (Contact, error) {
	number, ok := ExtractPhoneDeep(p)
	if !ok {
		return Contact{}, ErrMissingPhone
	}

	c := Contact{
		Phone:      number,
		ClientName: ExtractClientName(p),
	}
	if p.Event != nil {
		c.EventID = p.Event.UUID
		if c.EventID == "" {
			c.EventID = p.Event.URI
		}
		c.StartTime = p.Event.StartTime
		c.EndTime = p.Event.EndTime
		c.BookedAt = p.Event.CreatedAt
	}
	if p.EventType != nil {
		c.EventTitle = p.EventType.Name
	}
	return c, nil
}

// ExtractPhone walks the structured candidate fields, then the free-text
// question/answer pairs. Returns the first candidate that validates.
func ExtractPhone(p Payload) (string, bool) {
	for _, candidate := range phoneCandidates(p) {
		if number := phone.Normalize(candidate); phone.IsValid(number) {
			return number, true
		}
	}
	return "", false
}

// ExtractPhoneDeep behaves like ExtractPhone but, when every structured
// field fails, additionally scans the whole payload document for
// phone-shaped substrings. The scan runs over the original JSON the payload
// was decoded from, because the interesting numbers live in fields the
// schema drops; only a payload built in code (no source document) falls
// back to re-serializing the typed fields.
func ExtractPhoneDeep(p Payload) (string, bool) {
	if number, ok := ExtractPhone(p); ok {
		return number, true
	}

	raw := p.raw
	if raw == nil {
		var err error
		raw, err = json.Marshal(p)
		if err != nil {
			return "", false
		}
	}
	for _, pattern := range []*regexp.Regexp{e164Pattern, usPattern, barePattern} {
		for _, match := range pattern.FindAllString(string(raw), -1) {
			if number := phone.Normalize(match); phone.IsValid(number) {
				return number, true
			}
		}
	}
	return "", false
}

func phoneCandidates(p Payload) []string {
	var candidates []string
	if p.Invitee != nil {
		candidates = append(candidates,
			p.Invitee.SMSReminderNumber,
			p.Invitee.TextReminderNumber,
			p.Invitee.PhoneNumber,
		)
	}
	for _, qa := range p.QuestionsAndAnswers {
		question := strings.ToLower(qa.Question)
		if strings.Contains(question, "phone") || strings.Contains(question, "mobile") {
			candidates = append(candidates, qa.Answer)
		}
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// ExtractClientName prefers the invitee's full name, then first+last, then
// a name-shaped answer from the booking form, then the fixed placeholder.
func ExtractClientName(p Payload) string {
	if p.Invitee != nil {
		if name := strings.TrimSpace(p.Invitee.Name); name != "" {
			return name
		}
		combined := strings.TrimSpace(strings.TrimSpace(p.Invitee.FirstName) + " " + strings.TrimSpace(p.Invitee.LastName))
		if combined != "" {
			return combined
		}
	}
	for _, qa := range p.QuestionsAndAnswers {
		if strings.Contains(strings.ToLower(qa.Question), "name") {
			if answer := strings.TrimSpace(qa.Answer); answer != "" {
				return capitalizeWords(answer)
			}
		}
	}
	return DefaultClientName
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
