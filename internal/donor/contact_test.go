package donor

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodfinder/internal/model"
)

func TestContactURLPrefillsMessage(t *testing.T) {
	d := Donor{FullName: "Asha Rao", BloodGroup: model.ONeg, Branch: "Civil", PhoneE164: "919876543210"}

	assert.Equal(t, "Hi Asha Rao, we need a O- donor from Civil. Can you help? — VGU Blood Finder AI",
		ContactMessage(d, "VGU Blood Finder AI"))

	link := ContactURL(d, "VGU Blood Finder AI")
	require.True(t, strings.HasPrefix(link, "https://wa.me/919876543210?text="), link)
	assert.NotContains(t, link, "+", "spaces are percent-encoded")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, ContactMessage(d, "VGU Blood Finder AI"), u.Query().Get("text"))
}

func TestShareRegistrationURL(t *testing.T) {
	assert.Equal(t, "https://blood.vgu.ac.in/register", RegisterURL("https://blood.vgu.ac.in"))

	u, err := url.Parse(ShareRegistrationURL("https://blood.vgu.ac.in"))
	require.NoError(t, err)
	assert.Equal(t, "wa.me", u.Host)
	assert.Equal(t, "/", u.Path)
	assert.Equal(t, "🩸 Register as a blood donor at https://blood.vgu.ac.in/register", u.Query().Get("text"))
}
