package emergency

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const needByLayout = "02 Jan 2006, 15:04 MST"

// AlertText renders a request as a Telegram HTML message. User-supplied fields are
// escaped and the deadline is shown in loc (UTC when nil).
func AlertText(r Request, appName string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	group := html.EscapeString(string(r.BloodGroup))

	var b strings.Builder
	b.WriteString("🩸 <b>URGENT BLOOD DONATION NEEDED</b> 🩸\n\n")
	fmt.Fprintf(&b, "🩸 <b>Blood Type Required:</b> <code>%s</code>", group)
	if r.UnitsNeeded > 1 {
		fmt.Fprintf(&b, " (%d units needed)", r.UnitsNeeded)
	}
	if v := deref(r.RequesterName); v != "" {
		fmt.Fprintf(&b, "\n👤 <b>Requester:</b> %s", html.EscapeString(v))
	}
	if v := deref(r.Hospital); v != "" {
		fmt.Fprintf(&b, "\n🏥 <b>Hospital:</b> %s", html.EscapeString(v))
	}
	if v := deref(r.Location); v != "" {
		fmt.Fprintf(&b, "\n📍 <b>Location:</b> %s", html.EscapeString(v))
	}
	if v := deref(r.ContactPhone); v != "" {
		v = html.EscapeString(v)
		fmt.Fprintf(&b, "\n📞 <b>Contact:</b> <a href=\"tel:+%s\">%s</a>", v, v)
	}
	if r.NeedBy != nil {
		fmt.Fprintf(&b, "\n⏰ <b>Urgency:</b> %s", r.NeedBy.In(loc).Format(needByLayout))
	} else {
		b.WriteString("\n⏰ <b>Urgency:</b> IMMEDIATE")
	}
	b.WriteString("\n\n💝 <b>Can you help save a life?</b>\n")
	fmt.Fprintf(&b, "If you have %s blood type and can donate, please contact immediately!\n\n", group)
	fmt.Fprintf(&b, "🔗 <i>Posted via %s</i>", html.EscapeString(appName))
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
