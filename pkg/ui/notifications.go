package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier echoes to out and, where supported, raises a desktop notification
type Notifier struct {
	out    io.Writer
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform; other platforms only print
func NewNotifier(out io.Writer) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return &Notifier{out: out, sender: sender}
}

// NewNotifierWithSender is for callers that bring their own sender
func NewNotifierWithSender(out io.Writer, sender NotificationSender) *Notifier {
	return &Notifier{out: out, sender: sender}
}

// SendSuccess reports a clean finish
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// SendError reports a finish with failures
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// best effort, the console line above is authoritative
		_ = n.sender.Send(title, message)
	}
}

// NotifySummary raises one notification describing a finished batch
func (n *Notifier) NotifySummary(synced, failed, total int) {
	msg := fmt.Sprintf("%d of %d cameras synced", synced, total)
	if failed > 0 {
		n.SendError("amosync finished with failures", fmt.Sprintf("%s, %d failed", msg, failed))
		return
	}
	n.SendSuccess("amosync finished", msg)
}
