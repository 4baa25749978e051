// Package mbox renders a tracked patch back into the mail message form
// tools like git-am consume.
package mbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/patchtrack/patchtrack/internal/model"
)

// Render formats a patch as a single-message mbox. The body is the original
// commentary followed by the diff, the way the patch arrived on the list.
func Render(p *model.Patch, submitter *model.Person) string {
	var b strings.Builder

	date := p.Date.UTC()
	fmt.Fprintf(&b, "From %s %s\n", mboxEscape(submitter.Email),
		date.Format(time.ANSIC))
	fmt.Fprintf(&b, "From: %s <%s>\n", submitter.Name, submitter.Email)
	fmt.Fprintf(&b, "Subject: %s\n", p.Name)
	fmt.Fprintf(&b, "Date: %s\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-Id: %s\n", p.MsgID)
	b.WriteString("\n")

	if p.Content != "" {
		b.WriteString(strings.TrimRight(p.Content, "\n"))
		b.WriteString("\n\n")
	}
	if p.Diff != "" {
		b.WriteString(strings.TrimRight(p.Diff, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

// mboxEscape keeps the From_ separator line well-formed when the address
// itself is empty or has spaces.
func mboxEscape(addr string) string {
	if addr == "" {
		return "MAILER-DAEMON"
	}

	return strings.ReplaceAll(addr, " ", "_")
}
