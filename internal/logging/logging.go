// Package logging provides the kernel's single process-wide logger.
//
// A *logrus.Logger is constructed once by kernel.New and handed out to
// every component as a component-scoped *logrus.Entry, rather than
// accessed as a bare package-level global from deep inside other
// packages — the logger itself is the one process-wide singleton
// spec.md §9 allows, but it is threaded explicitly through constructors.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger. Callers keep the returned *logrus.Logger
// around only long enough to derive component entries from it.
func New(debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// For returns a logger entry tagged with the given component name, e.g.
// For(root, "radar").Infof("scan complete").
func For(root *logrus.Logger, component string) *logrus.Entry {
	return root.WithField("component", component)
}
