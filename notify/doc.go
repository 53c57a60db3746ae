// Package notify defines how registration codes leave the process.
//
// A [Deliverer] sends one [Message] over one [Channel]. Implementations live
// in sub-packages: notify/smtp for email and notify/sns for SMS. [Multi]
// routes messages by channel and [LogDeliverer] writes them to a slog logger
// for local development.
//
// Deliverers signal errors that must not be retried by wrapping them with
// [Permanent]. Everything else is treated as transient by the dispatcher.
package notify
