package domain

import "time"

// TimeLayout is the timestamp format of run log lines.
const TimeLayout = "2006-01-02 15:04:05"

type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String renders "[YYYY-MM-DD HH:MM:SS] message".
func (e LogEntry) String() string {
	return "[" + e.Time.Format(TimeLayout) + "] " + e.Message
}
