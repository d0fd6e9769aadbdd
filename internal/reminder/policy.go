package reminder

import (
	"strconv"
	"strings"

	"github.com/himmelstrup/timepush/internal/webpush"
)

// DefaultThreshold is the number of hours below which a user is reminded.
const DefaultThreshold = 6.0

// NeedsReminder reports whether total hours logged today falls short of
// threshold. Reaching the threshold exactly is enough.
func NeedsReminder(total, threshold float64) bool {
	return total < threshold
}

const (
	reminderTitle = "Husk at registrere timer"
	testTitle     = "Test"
)

// ReminderNotification is the message sent to a user who has logged total
// hours so far today.
func ReminderNotification(total float64) webpush.Notification {
	return webpush.Notification{
		Title: reminderTitle,
		Body: "Du har kun registreret " + formatHours(total) + " timer i dag. " +
			"Husk at få det hele med i runde tal. " +
			"Firmarelevante møder og telefonsamtaler registreres som Administration",
	}
}

// TestNotification greets name.
func TestNotification(name string) webpush.Notification {
	if name == "" {
		name = "der"
	}
	return webpush.Notification{Title: testTitle, Body: "Hej " + name + "!"}
}

// formatHours renders hours with one decimal and a decimal comma.
func formatHours(h float64) string {
	return strings.Replace(strconv.FormatFloat(h, 'f', 1, 64), ".", ",", 1)
}
