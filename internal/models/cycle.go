package models

// Phase represents where the controller is in an upload/extraction cycle.
type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseReady   Phase = "ready"
	PhasePending Phase = "pending"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// ErrorKind classifies why the last cycle failed. It is kept for
// diagnostics; the rendered message does not depend on it.
type ErrorKind string

const (
	ErrorKindNone             ErrorKind = ""
	ErrorKindNoFileSelected   ErrorKind = "no_file_selected"
	ErrorKindServiceRejected  ErrorKind = "service_rejected"
	ErrorKindTransportFailure ErrorKind = "transport_failure"
)

// Snapshot is a read-only copy of everything the rendering layer may show.
type Snapshot struct {
	Version   uint64            `json:"version" msgpack:"version"`
	Phase     Phase             `json:"phase" msgpack:"phase"`
	HasFile   bool              `json:"hasFile" msgpack:"hasFile"`
	FileName  string            `json:"fileName,omitempty" msgpack:"fileName,omitempty"`
	CycleID   string            `json:"cycleId,omitempty" msgpack:"cycleId,omitempty"`
	Result    *ExtractionResult `json:"result,omitempty" msgpack:"result,omitempty"`
	Fields    []ResultField     `json:"fields,omitempty" msgpack:"fields,omitempty"`
	Error     string            `json:"error,omitempty" msgpack:"error,omitempty"`
	ErrorKind ErrorKind         `json:"errorKind,omitempty" msgpack:"errorKind,omitempty"`
	CanSubmit bool              `json:"canSubmit" msgpack:"canSubmit"`
}
