package core

// Logger is any service that can log and report app events.
// Implementations may special-case certain args (eg. an authenticated
// identity) for richer reports.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
