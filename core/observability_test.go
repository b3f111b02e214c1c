package core

import (
	"context"
	"net/http"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) counter(name string) (capturedCounter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, counter := range m.counters {
		if counter.name == name {
			return counter, true
		}
	}
	return capturedCounter{}, false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestServiceObservability_IngestSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc := newTestService(t, testConfig(),
		WithMetricsRecorder(metrics),
		WithLogger(logger),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
	)

	response := ingestPunch(svc, fullPunchPayload)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}

	total, ok := metrics.counter(MetricIngestTotal)
	if !ok || total.tags["status"] != "success" || total.tags["provider_id"] != "acme" {
		t.Fatalf("expected success total counter, got %+v", total)
	}
	if _, ok := metrics.counter(MetricIngestDecisionPrefix + "create"); !ok {
		t.Fatalf("expected create decision counter")
	}
	if len(metrics.histograms) != 1 || metrics.histograms[0].name != MetricIngestDurationMS {
		t.Fatalf("expected duration histogram, got %+v", metrics.histograms)
	}

	logs := logger.snapshot()
	if len(logs) == 0 {
		t.Fatalf("expected log output")
	}
	last := logs[len(logs)-1]
	if last.level != "info" || last.msg != "ingest succeeded" {
		t.Fatalf("unexpected log %+v", last)
	}
	if last.fields["natural_key"] != "acme:timesheet:p1" || last.fields["decision"] != string(DecisionCreate) {
		t.Fatalf("expected structured fields, got %+v", last.fields)
	}
}

func TestServiceObservability_IngestFailure(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc := newTestService(t, testConfig(),
		WithMetricsRecorder(metrics),
		WithLogger(logger),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
	)

	response := ingestPunch(svc, `{"userId":1}`)
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", response.StatusCode)
	}
	total, ok := metrics.counter(MetricIngestTotal)
	if !ok || total.tags["status"] != "failure" || total.tags["error_kind"] != string(ErrorKindMalformedPayload) {
		t.Fatalf("expected failure total counter, got %+v", total)
	}
	logs := logger.snapshot()
	last := logs[len(logs)-1]
	if last.level != "error" || last.msg != "ingest failed" {
		t.Fatalf("unexpected log %+v", last)
	}
	if last.fields["error_kind"] != string(ErrorKindMalformedPayload) {
		t.Fatalf("expected error kind field, got %+v", last.fields)
	}
}
