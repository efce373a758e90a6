// Package logging is a thin component-tagged wrapper around the standard
// library logger. It exists so every component logs warnings the same way
// ("log and continue") instead of each reaching for its own prefix.
package logging

import "log"

// Logger prefixes every line with a component tag, e.g. "[rater]".
type Logger struct {
	component string
}

// New returns a Logger tagged with component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Warnf(format string, args ...any) {
	log.Printf("[%s] WARN "+format, append([]any{l.component}, args...)...)
}

func (l *Logger) Infof(format string, args ...any) {
	log.Printf("[%s] INFO "+format, append([]any{l.component}, args...)...)
}

func (l *Logger) Debugf(format string, args ...any) {
	log.Printf("[%s] DEBUG "+format, append([]any{l.component}, args...)...)
}
