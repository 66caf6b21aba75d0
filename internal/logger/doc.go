// Package logger wraps zap for every airmouse binary.
//
// A sugared global logger writes console-encoded entries to stderr, so the
// stdout of airmouse-host stays free for its event stream. EnableFileOutput
// tees the same entries into a daily rotating file. Services carry named
// loggers in their context (WithName, WithKV) and log through the package
// functions such as InfoKV and WarnKV.
package logger
