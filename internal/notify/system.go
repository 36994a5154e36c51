package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupported = errors.New("system notifications are not supported here")

// CommandNotifier raises desktop notifications through osascript on macOS
// and notify-send on Linux.
type CommandNotifier struct {
	AppName string

	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args ...string) ([]byte, error)
}

func NewCommandNotifier(appName string) *CommandNotifier {
	return &CommandNotifier{
		AppName:  appName,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

// escapeAppleScript escapes s for use inside an AppleScript string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

func (n *CommandNotifier) Notify(title, body string) error {
	var name string
	var args []string

	switch n.goos {
	case "darwin":
		name = "osascript"
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(body), escapeAppleScript(title))
		if n.AppName != "" {
			script += fmt.Sprintf(` subtitle "%s"`, escapeAppleScript(n.AppName))
		}
		args = []string{"-e", script}
	case "linux":
		name = "notify-send"
		if n.AppName != "" {
			args = append(args, "--app-name", n.AppName)
		}
		args = append(args, title, body)
	default:
		return errors.Wrap(ErrUnsupported, n.goos)
	}

	if _, err := n.lookPath(name); err != nil {
		return errors.Wrap(ErrUnsupported, name+" not found")
	}

	output, err := n.run(name, args...)
	if err != nil {
		return errors.Wrapf(err, "%s failed (output: %s)", name, strings.TrimSpace(string(output)))
	}
	return nil
}
