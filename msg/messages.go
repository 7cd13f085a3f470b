// Package msg renders user-facing Telegram texts in the supported languages.
package msg

import (
	"fmt"
	"strings"

	"dailybread/core/telegram/format"
	"dailybread/plan"
)

// Supported languages.
const (
	LangEN = "en"
	LangDE = "de"
)

// Normalize maps user input to a supported language code, defaulting to English.
func Normalize(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LangDE, "german", "deutsch":
		return LangDE
	default:
		return LangEN
	}
}

// Supported reports whether lang is an accepted language code.
func Supported(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LangEN, LangDE:
		return true
	}
	return false
}

// Reminder renders the daily reading reminder in MarkdownV2.
func Reminder(lang string, e plan.Entry) string {
	ot := format.EscapeMarkdownV2(e.OldTestament)
	nt := format.EscapeMarkdownV2(e.NewTestament)
	switch Normalize(lang) {
	case LangDE:
		return fmt.Sprintf("*📖 Dies ist eine Erinnerung, heute in der Bibel zu lesen*: \n\nAT: %s\nNT: %s", ot, nt)
	default:
		return fmt.Sprintf("*📖 This is a reminder to read the Bible today*: \n\nOT: %s\nNT: %s", ot, nt)
	}
}

// ReminderFallback is sent when no plan entry exists for the day.
func ReminderFallback(lang string) string {
	if Normalize(lang) == LangDE {
		return "Dies ist eine Erinnerung, auch heute in der Bibel zu lesen."
	}
	return "This is a reminder to read your bible!"
}

// Start greets a new chat.
func Start(lang string) string {
	if Normalize(lang) == LangDE {
		return "Dieser Bot hilft dir, täglich in der Bibel zu lesen. Tippe /help für mehr Informationen."
	}
	return "This bot helps you to read your Bible daily. Type /help for more information"
}

// Subscribed confirms enrollment at day 1.
func Subscribed(lang, sendTime string) string {
	if Normalize(lang) == LangDE {
		return fmt.Sprintf("Du bist angemeldet. Deine tägliche Erinnerung kommt um %s. Mit /settime kannst du die Zeit ändern.", sendTime)
	}
	return fmt.Sprintf("You are subscribed. Your daily reminder arrives at %s. Use /settime to change the time.", sendTime)
}

// AlreadySubscribed is sent on a repeated /subscribe.
func AlreadySubscribed(lang string) string {
	if Normalize(lang) == LangDE {
		return "Du bist bereits angemeldet."
	}
	return "You are already subscribed."
}

// Unsubscribed confirms deactivation, progress kept.
func Unsubscribed(lang string) string {
	if Normalize(lang) == LangDE {
		return "Du bist abgemeldet. Dein Fortschritt bleibt erhalten, /subscribe setzt fort."
	}
	return "You are unsubscribed. Your progress is kept, /subscribe resumes."
}

// NotSubscribed is sent when a command needs an enrollment that does not exist.
func NotSubscribed(lang string) string {
	if Normalize(lang) == LangDE {
		return "Du bist noch nicht angemeldet. Benutze /subscribe."
	}
	return "You are not subscribed yet. Use /subscribe."
}

// LanguageSet confirms a language switch, phrased in the NEW language.
func LanguageSet(lang string) string {
	if Normalize(lang) == LangDE {
		return "Die Sprache wurde auf Deutsch umgestellt."
	}
	return "Language set to English."
}

// LanguageUsage explains /setlang arguments.
func LanguageUsage(lang string) string {
	if Normalize(lang) == LangDE {
		return "Du musst eine Sprache angeben, entweder /setlang de oder /setlang en"
	}
	return "You need to specify a language, use either /setlang en or /setlang de"
}

// TimeSet confirms a personal send-time override.
func TimeSet(lang, sendTime string) string {
	if Normalize(lang) == LangDE {
		return fmt.Sprintf("Die tägliche Erinnerung wurde auf %s gesetzt.", sendTime)
	}
	return fmt.Sprintf("The daily timer has been updated to %s.", sendTime)
}

// TimeUsage explains /settime arguments.
func TimeUsage(lang string) string {
	if Normalize(lang) == LangDE {
		return "Ungültiges Format. Bitte benutze die Funktion mit einer gültigen Zeitangabe, zum Beispiel /settime 08:00."
	}
	return "The format was not valid. Please use the function with a valid time (for example /settime 08:00)."
}

// Progress reports the subscriber's position in the plan.
func Progress(lang string, day, planDays int) string {
	if day > planDays {
		return Completed(lang)
	}
	if Normalize(lang) == LangDE {
		return fmt.Sprintf("Du bist bei Tag %d von %d.", day, planDays)
	}
	return fmt.Sprintf("You are on day %d of %d.", day, planDays)
}

// Completed congratulates a subscriber who finished the plan.
func Completed(lang string) string {
	if Normalize(lang) == LangDE {
		return "🎉 Du hast den Leseplan abgeschlossen. Herzlichen Glückwunsch!"
	}
	return "🎉 You have completed the reading plan. Congratulations!"
}

// ResetDone confirms a restart at day 1.
func ResetDone(lang string) string {
	if Normalize(lang) == LangDE {
		return "Dein Fortschritt wurde zurückgesetzt. Morgen geht es wieder mit Tag 1 los."
	}
	return "Your progress has been reset. Tomorrow starts again at day 1."
}

// PollQuestion is the optional follow-up poll question.
func PollQuestion(lang string) string {
	if Normalize(lang) == LangDE {
		return "Hast du heute in der Bibel gelesen?"
	}
	return "Have you read the Bible today?"
}

// PollOptions are the poll answers, order fixed.
func PollOptions(lang string) []string {
	if Normalize(lang) == LangDE {
		return []string{"Ja", "Nein"}
	}
	return []string{"Yes", "No"}
}

// Help lists the available commands.
func Help(lang string) string {
	if Normalize(lang) == LangDE {
		return strings.Join([]string{
			"Diese Befehle werden unterstützt:",
			"/start - Startnachricht anzeigen",
			"/subscribe - Tägliche Erinnerung abonnieren",
			"/unsubscribe - Erinnerungen pausieren",
			"/today - Die heutige Leseeinheit sofort senden",
			"/settime - Persönliche Erinnerungszeit setzen, z.B. /settime 08:00",
			"/setlang - Sprache wählen, /setlang de oder /setlang en",
			"/progress - Fortschritt im Leseplan anzeigen",
			"/reset - Fortschritt auf Tag 1 zurücksetzen",
			"/chatinfo - Chat-Informationen anzeigen",
			"/help - Diese Hilfe anzeigen",
		}, "\n")
	}
	return strings.Join([]string{
		"These commands are supported:",
		"/start - Show the start message",
		"/subscribe - Subscribe to the daily reminder",
		"/unsubscribe - Pause reminders",
		"/today - Send today's reading right away",
		"/settime - Set a personal reminder time, e.g. /settime 08:00",
		"/setlang - Choose the language, /setlang de or /setlang en",
		"/progress - Show your progress through the plan",
		"/reset - Restart the plan at day 1",
		"/chatinfo - Show chat information",
		"/help - Show this help message",
	}, "\n")
}
