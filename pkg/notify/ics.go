package notify

import (
	"strings"
	"time"
)

const icsStamp = "20060102T150405Z"

// Invite is a single-event iCalendar file.
type Invite struct {
	UID         string
	Summary     string
	Location    string
	Description string
	Start, End  time.Time
	Stamp       time.Time
}

// Render produces the VCALENDAR text with CRLF line endings and UTC times.
func (i Invite) Render() string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Pharma-Cal//EN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + escapeText(i.UID),
		"DTSTAMP:" + i.Stamp.UTC().Format(icsStamp),
		"DTSTART:" + i.Start.UTC().Format(icsStamp),
		"DTEND:" + i.End.UTC().Format(icsStamp),
		"SUMMARY:" + escapeText(i.Summary),
		"LOCATION:" + escapeText(i.Location),
		"DESCRIPTION:" + escapeText(i.Description),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func escapeText(s string) string {
	return icsEscaper.Replace(s)
}
