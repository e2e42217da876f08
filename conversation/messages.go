package conversation

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxSMSLength is the practical per-message cap enforced before handing
// text to the transport.
const MaxSMSLength = 1600

// maxResponseTextLength bounds the stored copy of a client reply.
const maxResponseTextLength = 1000

func initialMessage(record *Record) string {
	title := record.EventTitle
	if title == "" {
		title = "appointment"
	}
	msg := fmt.Sprintf(
		"Hi %s! Your %s is confirmed for %s. Reply to this message if you have any questions or need to reschedule.",
		record.ClientName, title, formatEventTime(record.EventStartTime))
	return truncate(msg, MaxSMSLength)
}

func followUpMessage(clientName string) string {
	msg := fmt.Sprintf(
		"Hi %s, just checking in ahead of your appointment. Reply here if anything has changed or if you have questions!",
		clientName)
	return truncate(msg, MaxSMSLength)
}

func formatEventTime(isoTime string) string {
	t, err := time.Parse(time.RFC3339, isoTime)
	if err != nil {
		return isoTime
	}
	return t.Format("Monday, January 2 at 3:04 PM")
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune.
// The stored text must stay valid UTF-8 or the store rejects the write.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
