package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// ActivityLog writes user-visible activity lines to the log store and mirrors
// them to the structured logger. Store failures are logged and swallowed.
type ActivityLog struct {
	store  LogStore
	logger Logger
	now    func() time.Time
}

func NewActivityLog(store LogStore, logger Logger) *ActivityLog {
	return &ActivityLog{
		store:  store,
		logger: glog.Ensure(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *ActivityLog) Record(ctx context.Context, format string, args ...any) {
	if a == nil {
		return
	}
	line := strings.TrimSpace(fmt.Sprintf(format, args...))
	if line == "" {
		return
	}
	a.logger.Info(line)
	if a.store == nil {
		return
	}
	if _, err := a.store.Append(ctx, LogEntry{Message: line, CreatedAt: a.now()}); err != nil {
		a.logger.Warn("activity log append failed", "error", err.Error())
	}
}
