package models

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies a per-file conversion failure.
type FailureKind string

const (
	FailureUnsupported     FailureKind = "unsupported"
	FailureCodec           FailureKind = "codec-error"
	FailureTimeout         FailureKind = "timeout"
	FailureExternalProcess FailureKind = "external-process-error"
)

// Sentinel errors surfaced by the engine. Callers are expected to
// check these with errors.Is rather than matching message text.
var (
	ErrJobNotFound          = errors.New("job not found")
	ErrJobNotReady          = errors.New("job result not ready")
	ErrArtifactNotFound     = errors.New("artifact not found or expired")
	ErrAllConversionsFailed = errors.New("all conversions failed")
	ErrRateLimited          = errors.New("submission rate limit exceeded")
)

// InputRef points at one uploaded blob. The original filename is
// untrusted and only used for extension derivation and display.
type InputRef struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// OutputRef points at one produced blob in output storage.
type OutputRef struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// ConversionFailure records a single failed file conversion.
type ConversionFailure struct {
	Filename string      `json:"filename"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
}

func (f *ConversionFailure) Error() string {
	return fmt.Sprintf("%s: %s (%s)", f.Filename, f.Message, f.Kind)
}

// ConversionOutcome is the per-file result produced by the dispatcher:
// one or more outputs (rasterization fans out per page) or one failure.
type ConversionOutcome struct {
	Outputs []OutputRef        `json:"outputs,omitempty"`
	Failure *ConversionFailure `json:"failure,omitempty"`
}

func (o ConversionOutcome) Succeeded() bool {
	return o.Failure == nil && len(o.Outputs) > 0
}

type ResultType string

const (
	ResultSingle  ResultType = "single"
	ResultArchive ResultType = "archive"
)

// JobResult is the terminal payload of a successful job. Failures may
// be non-empty on success: partial success is representable and is
// surfaced to the caller alongside the artifact.
type JobResult struct {
	Type       ResultType          `json:"type"`
	Key        string              `json:"key"`
	Filename   string              `json:"filename"`
	Failures   []ConversionFailure `json:"failures,omitempty"`
	FileCount  int                 `json:"fileCount"`
	DurationMs int64               `json:"durationMs"`
}

// Job is the unit of work pushed onto the pending queue. It carries no
// file bytes; workers fetch inputs from storage by key.
type Job struct {
	ID           string            `json:"id"`
	Inputs       []InputRef        `json:"inputs"`
	TargetFormat string            `json:"targetFormat"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RetryCount   int               `json:"retryCount"`
	MaxRetries   int               `json:"maxRetries"`
	CreatedAt    time.Time         `json:"createdAt"`
	EnqueuedAt   time.Time         `json:"enqueuedAt"`
}

// Record is the durable view of a job kept in the result store for the
// configured expiry window. It is owned exclusively by the lifecycle
// engine and mutated only through state transitions.
type Record struct {
	JobID        string     `json:"jobId"`
	State        JobState   `json:"state"`
	TargetFormat string     `json:"targetFormat"`
	FileCount    int        `json:"fileCount"`
	Message      string     `json:"message,omitempty"`
	RetryCount   int        `json:"retryCount"`
	LastError    string     `json:"lastError,omitempty"`
	Result       *JobResult `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}
