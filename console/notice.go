package console

import (
	"sync"
	"time"

	"github.com/DachengChen/nlsql/applog"
	"github.com/DachengChen/nlsql/errs"
)

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a short user-visible message.
type Notice struct {
	Level Level
	Text  string
	Time  time.Time
}

// Notifier receives notices from controllers.
type Notifier interface {
	Notify(Notice)
}

// NoticeLog is a Notifier that keeps the most recent notices.
type NoticeLog struct {
	mu      sync.Mutex
	max     int
	notices []Notice
}

// NewNoticeLog keeps at most max notices.
func NewNoticeLog(max int) *NoticeLog {
	if max <= 0 {
		max = 50
	}
	return &NoticeLog{max: max}
}

// Notify implements Notifier.
func (l *NoticeLog) Notify(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
	if len(l.notices) > l.max {
		l.notices = l.notices[len(l.notices)-l.max:]
	}
}

// All returns every retained notice, oldest first.
func (l *NoticeLog) All() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notice, len(l.notices))
	copy(out, l.notices)
	return out
}

// Latest returns the newest notice, if any.
func (l *NoticeLog) Latest() (Notice, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.notices) == 0 {
		return Notice{}, false
	}
	return l.notices[len(l.notices)-1], true
}

// Clear drops all notices.
func (l *NoticeLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = nil
}

// notifier wraps an optional Notifier and mirrors notices to the log.
type notifier struct {
	category string
	sink     Notifier
}

func (n notifier) send(level Level, text string) {
	ev := applog.L().Info()
	switch level {
	case LevelWarning:
		ev = applog.L().Warn()
	case LevelError:
		ev = applog.L().Error()
	}
	ev.Str("category", n.category).Str("level", level.String()).Msg(text)

	if n.sink != nil {
		n.sink.Notify(Notice{Level: level, Text: text, Time: time.Now()})
	}
}

func (n notifier) info(text string)    { n.send(LevelInfo, text) }
func (n notifier) success(text string) { n.send(LevelSuccess, text) }
func (n notifier) warn(text string)    { n.send(LevelWarning, text) }

// fail reports err. Local validation problems are warnings; secondary
// failures too. Everything else is an error.
func (n notifier) fail(prefix string, err error) {
	level := LevelError
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindSecondary:
		level = LevelWarning
	}
	text := errs.Message(err)
	if prefix != "" {
		text = prefix + ": " + text
	}
	n.send(level, text)
}
