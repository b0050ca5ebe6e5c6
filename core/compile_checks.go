package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ForwarderService = (*Service)(nil)
	_ JobExecutor      = JobExecutorFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
