// Package notify delivers fire-and-forget desktop notifications over the
// session D-Bus, with a notify-send subprocess fallback when the bus is
// unreachable (headless session, dbus-daemon not running). Delivery is
// always best-effort: a failed notification never blocks or fails the
// caller's command.
package notify

import (
	"context"
	"os/exec"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notifyTimeout = 3 * time.Second
	appName       = "SpeechDesk"
)

// Send delivers a desktop notification with the given summary and body,
// trying the session bus first and falling back to notify-send.
func Send(summary, body string) {
	if sendViaDBus(summary, body) {
		return
	}
	sendViaSubprocess(summary, body)
}

func sendViaDBus(summary, body string) bool {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return false
	}
	defer conn.Close()

	if err := conn.Auth(nil); err != nil {
		return false
	}
	if err := conn.Hello(); err != nil {
		return false
	}

	obj := conn.Object("org.freedesktop.Notifications", dbus.ObjectPath("/org/freedesktop/Notifications"))
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		appName, uint32(0), "", summary, body, []string{}, map[string]dbus.Variant{}, int32(5000))
	return call.Err == nil
}

func sendViaSubprocess(summary, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	args := []string{"-a", appName, summary}
	if body != "" {
		args = append(args, body)
	}
	_ = exec.CommandContext(ctx, "notify-send", args...).Start()
}

// PlayCue gives best-effort audible feedback for a mode transition: a
// short desktop-notification-style chime is out of scope for a headless
// sound daemon, so this simply shells out to a user-configurable
// "speechdesk-cue" script if one is on PATH, doing nothing otherwise.
func PlayCue(on bool) {
	path, err := exec.LookPath("speechdesk-cue")
	if err != nil {
		return
	}
	arg := "off"
	if on {
		arg = "on"
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	_ = exec.CommandContext(ctx, path, arg).Start()
}
