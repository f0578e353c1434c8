// Package notify delivers transactional email. Drivers share the Notifier
// interface so account flows do not care whether mail goes out inline,
// through the job queue, or into the log.
package notify

import (
	"context"
	"errors"
	"strings"
)

// ErrDelivery wraps every driver failure.
var ErrDelivery = errors.New("notify: delivery failed")

// Notifier sends one HTML message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Drivers accepted by MAIL_DRIVER.
const (
	DriverLog   = "log"
	DriverSMTP  = "smtp"
	DriverQueue = "queue"
)

// ValidDriver reports whether name is a known driver.
func ValidDriver(name string) bool {
	switch strings.ToLower(name) {
	case DriverLog, DriverSMTP, DriverQueue:
		return true
	}
	return false
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, to, subject, htmlBody string) error

func (f NotifierFunc) Send(ctx context.Context, to, subject, htmlBody string) error {
	return f(ctx, to, subject, htmlBody)
}

// Instrument reports the outcome of every Send through observe.
func Instrument(n Notifier, driver string, observe func(driver string, err error)) Notifier {
	if observe == nil {
		return n
	}
	return NotifierFunc(func(ctx context.Context, to, subject, htmlBody string) error {
		err := n.Send(ctx, to, subject, htmlBody)
		observe(driver, err)
		return err
	})
}
