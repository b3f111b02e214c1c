package core

import "net/http"

func successResponse(run *ingestRun) Response {
	outcomes := run.outcomes
	if outcomes == nil {
		outcomes = []NotificationOutcome{}
	}
	return Response{
		StatusCode: http.StatusOK,
		Body: ResponseBody{
			RecordID:      run.result.RecordID,
			Created:       run.result.Created,
			ChangedFields: copyStrings(run.result.ChangedFields),
			Notifications: outcomes,
			Decision:      run.decision.Kind,
			State:         run.state,
		},
	}
}

func failureResponse(run *ingestRun, err error) Response {
	kind := ErrorKindOf(err)
	if kind == "" {
		kind = ErrorKindInternal
	}
	return Response{
		StatusCode: kind.StatusCode(),
		Body: ResponseBody{
			ChangedFields: []string{},
			Notifications: []NotificationOutcome{},
			Decision:      run.decision.Kind,
			State:         StateFailed,
			Error: &ResponseError{
				Kind:      kind,
				Message:   err.Error(),
				Retryable: kind.Retryable(),
			},
		},
	}
}

// Succeeded reports a 2xx response.
func (r Response) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns the classified failure carried by the response, if any.
func (r Response) Err() error {
	if r.Body.Error == nil {
		return nil
	}
	return responseError{status: r.StatusCode, body: *r.Body.Error}
}

type responseError struct {
	status int
	body   ResponseError
}

func (e responseError) Error() string {
	return e.body.Message
}

func (e responseError) Unwrap() error {
	if spec, ok := errorSpecs[e.body.Kind]; ok && spec.sentinel != nil {
		return spec.sentinel
	}
	return nil
}
