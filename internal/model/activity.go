package model

import "time"

// StatsHeader is row 0 of the user_stats table.
var StatsHeader = ActivityEntry{TelegramID: "TelegramID", Name: "Name", Command: "Command", DateTime: "DateTime"}

// ActivityEntry is one immutable audit record of a chat command.
//
// Fields:
//  TelegramID – identity of the caller.
//  Name       – display name of the caller at the time of the command.
//  Command    – command name including the slash, e.g. "/book".
//  DateTime   – DD/MM/YYYY HH:MM:SS in the fixed zone.
type ActivityEntry struct {
	TelegramID string `json:"telegram_id"` // user_stats.telegram_id
	Name       string `json:"name"`        // user_stats.name
	Command    string `json:"command"`     // user_stats.command
	DateTime   string `json:"date_time"`   // user_stats.date_time
}

// At parses DateTime in loc.
func (e ActivityEntry) At(loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DateTimeLayout, e.DateTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CommandCount is one command with how often it was used.
type CommandCount struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// UserSummary aggregates the activity of one display name.
type UserSummary struct {
	Name     string         `json:"name"`
	Total    int            `json:"total"`
	Commands []CommandCount `json:"commands"`
	Last     string         `json:"last"`
}
