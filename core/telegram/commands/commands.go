// Package commands declares the metadata attached to each registered bot
// command.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command couples a handler with how the command is exposed: its menu
// description, visibility, access restriction, and accepted alias endpoints.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Visible reports whether the command belongs in the public command menu.
// Admin-only commands are always kept out of it.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}
