package gologger

import (
	"strings"

	"github.com/goliatone/go-hr-ingest/adapters/gojob"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultName is the root logger name for the ingest runtime.
const DefaultName = "ingest"

// Loggers holds one resolved glog logger and its go-job counterparts.
type Loggers struct {
	Name        string
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// Resolve uses deterministic precedence provider > logger > nop. A blank name
// resolves under DefaultName.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(loggerName(name), provider, logger)
}

// ForComponent resolves the logger for one ingest component, such as
// "notify" or "webhooks", named "ingest.<component>".
func ForComponent(component string, provider glog.LoggerProvider, logger glog.Logger) Loggers {
	name := DefaultName
	if component = strings.Trim(strings.TrimSpace(component), "."); component != "" {
		name = DefaultName + "." + component
	}
	resolvedProvider, resolved := Resolve(name, provider, logger)
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			resolved = named
		}
	}
	resolved = glog.Ensure(resolved)
	return Loggers{
		Name:        name,
		Provider:    resolvedProvider,
		Logger:      resolved,
		JobProvider: ToJobProvider(resolvedProvider),
		JobLogger:   ToJobLogger(resolved),
	}
}

// WorkerHook returns a go-job worker hook that logs ingest job lifecycle
// events through these loggers.
func (l Loggers) WorkerHook() *gojob.LoggingHook {
	return gojob.NewLoggingHook(glog.Ensure(l.Logger))
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

func loggerName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return DefaultName
}
