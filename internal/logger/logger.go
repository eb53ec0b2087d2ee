package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// locationFormatter renders entry timestamps in a fixed location before delegating.
type locationFormatter struct {
	loc   *time.Location
	inner logrus.Formatter
}

func (f *locationFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.In(f.loc)
	return f.inner.Format(e)
}

// New builds a JSON logger writing one object per line to w.
// Keys follow the request log layout: ts, level, msg.
func New(w io.Writer, loc *time.Location, level string) *logrus.Logger {
	if loc == nil {
		loc = time.UTC
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&locationFormatter{
		loc: loc,
		inner: &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
				logrus.FieldKeyMsg:  "msg",
			},
		},
	})
	return l
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Logger {
	return New(io.Discard, time.UTC, "panic")
}
