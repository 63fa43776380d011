package donor

import (
	"fmt"

	"bloodfinder/internal/phone"
)

// ContactMessage is the WhatsApp text prefilled when a coordinator reaches out to d.
func ContactMessage(d Donor, appName string) string {
	return fmt.Sprintf("Hi %s, we need a %s donor from %s. Can you help? — %s",
		d.FullName, d.BloodGroup, d.Branch, appName)
}

// ContactURL opens a WhatsApp chat with d carrying ContactMessage.
func ContactURL(d Donor, appName string) string {
	return phone.WhatsAppLink(d.PhoneE164, ContactMessage(d, appName))
}

// RegisterURL is the public registration page under origin.
func RegisterURL(origin string) string {
	return origin + "/register"
}

// ShareRegistrationURL opens WhatsApp with an invitation to the registration page and
// no recipient, so the user picks the chat.
func ShareRegistrationURL(origin string) string {
	return phone.WhatsAppLink("", "🩸 Register as a blood donor at "+RegisterURL(origin))
}
