// Package logging provides the structured logging setup for the sso-login
// command.
//
// It is a thin layer over Go's standard slog package: Init configures a
// text handler with level filtering, and the leveled helpers
// (Debug/Info/Warn/Error) tag every entry with a subsystem string so log
// output can be filtered by origin:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Flow", "starting device authorization for %s", startURL)
//	logging.Error("Cache", err, "failed to write token record")
//
// Library code does not use this package directly; it takes an injected
// *slog.Logger, which the command obtains from Logger(). This keeps the
// library free of global logging state while giving the command a single
// switch for verbosity.
package logging
