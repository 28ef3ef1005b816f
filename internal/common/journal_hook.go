// Inspired by github.com/wercker/journalhook (MIT license)
package common

import (
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

var journalPriorities = map[logrus.Level]journal.Priority{
	logrus.TraceLevel: journal.PriDebug,
	logrus.DebugLevel: journal.PriDebug,
	logrus.InfoLevel:  journal.PriInfo,
	logrus.WarnLevel:  journal.PriWarning,
	logrus.ErrorLevel: journal.PriErr,
	logrus.FatalLevel: journal.PriCrit,
	logrus.PanicLevel: journal.PriEmerg,
}

// JournalHook is a logrus hook sending every entry to the systemd journal.
// Entry fields become journal fields, e.g. "kernel" is sent as KERNEL.
type JournalHook struct {
	// Identifier is sent as SYSLOG_IDENTIFIER if set.
	Identifier string

	send func(message string, priority journal.Priority, vars map[string]string) error
}

func NewJournalHook(identifier string) *JournalHook {
	return &JournalHook{Identifier: identifier, send: journal.Send}
}

// JournalAvailable reports whether the local journal socket can be used.
func JournalAvailable() bool {
	return journal.Enabled()
}

// journalFieldName maps a logrus field name to a valid journal field name:
// upper case letters, digits and underscores, not starting with an
// underscore.
func journalFieldName(key string) string {
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		default:
			return '_'
		}
	}, key)
	return strings.TrimLeft(key, "_")
}

func (hook *JournalHook) vars(entry *logrus.Entry) map[string]string {
	vars := make(map[string]string, len(entry.Data)+1)
	for k, v := range entry.Data {
		name := journalFieldName(k)
		if name == "" {
			continue
		}
		vars[name] = fmt.Sprint(v)
	}
	if hook.Identifier != "" {
		vars["SYSLOG_IDENTIFIER"] = hook.Identifier
	}
	return vars
}

func (hook *JournalHook) Fire(entry *logrus.Entry) error {
	send := hook.send
	if send == nil {
		send = journal.Send
	}
	return send(entry.Message, journalPriorities[entry.Level], hook.vars(entry))
}

func (hook *JournalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
