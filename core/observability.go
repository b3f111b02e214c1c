package core

import (
	"context"
	"sort"
	"strings"
)

func (s *Service) observeIngest(ctx context.Context, run *ingestRun, response Response, err error) {
	if s == nil {
		return
	}
	duration := s.clock().Sub(run.startedAt)
	status := "success"
	if err != nil {
		status = "failure"
	}

	fields := map[string]any{
		"provider_id": strings.TrimSpace(run.req.ProviderID),
		"entity_type": string(run.req.EntityType),
		"event_id":    run.record.SourceEventID,
		"natural_key": run.record.NaturalKey,
		"decision":    string(run.decision.Kind),
		"state":       string(response.Body.State),
		"status_code": response.StatusCode,
		"attempts":    run.attempts,
		"duration_ms": duration.Milliseconds(),
	}
	if response.Body.RecordID != "" {
		fields["record_id"] = response.Body.RecordID
	}
	if err != nil {
		fields["error"] = err.Error()
		fields["error_kind"] = string(ErrorKindOf(err))
	}

	tags := map[string]string{
		"status":      status,
		"entity_type": string(run.req.EntityType),
	}
	if provider := strings.TrimSpace(run.req.ProviderID); provider != "" {
		tags["provider_id"] = provider
	}
	if err != nil {
		tags["error_kind"] = string(ErrorKindOf(err))
	}

	s.recordCounter(ctx, MetricIngestTotal, 1, tags)
	if run.decision.Kind != "" && err == nil {
		s.recordCounter(ctx, MetricIngestDecisionPrefix+strings.ToLower(string(run.decision.Kind)), 1, tags)
	}
	s.recordHistogram(ctx, MetricIngestDurationMS, float64(duration.Milliseconds()), tags)

	if err != nil {
		s.logWithLevel(ctx, "error", "ingest failed", fields)
		return
	}
	s.logWithLevel(ctx, "info", "ingest succeeded", fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
