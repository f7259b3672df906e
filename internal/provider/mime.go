package provider

import (
	"fmt"
	"mime"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// splitAddress returns the display name and bare address of a From value
// such as "Booking System <onboarding@resend.dev>". Unparseable input is
// returned as the address.
func splitAddress(from string) (name, addr string) {
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return "", from
	}
	return parsed.Name, parsed.Address
}

// buildMIME renders msg as a single-part text/html RFC 5322 message.
func buildMIME(msg *Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	if msg.ID != "" {
		_, addr := splitAddress(msg.From)
		domain := "localhost"
		if i := strings.LastIndex(addr, "@"); i >= 0 {
			domain = addr[i+1:]
		}
		fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", msg.ID, domain)
	}

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, msg.Headers[k])
	}

	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.HTML, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
