// Package redirect provides the countdown that precedes an automatic navigation.
//
// A [Scheduler] ticks once per interval, reports the remaining seconds, and calls
// its expiry callback exactly once when the count reaches zero. [Scheduler.Cancel]
// is safe to call any number of times, from any goroutine, before or after expiry.
//
// # What this package must NOT do
//
//   - Navigate by itself. The expiry callback decides where to go.
//   - Start twice. One scheduler backs exactly one countdown.
package redirect
