package merge

import (
	"errors"
	"fmt"
)

// Kind classifies a job failure. The api layer maps kinds to HTTP status
// classes; the kind also tells callers whether a retry can help.
type Kind int

const (
	// KindInternal covers unexpected failures with no better class.
	KindInternal Kind = iota
	// KindInvalidInput: malformed request or URL, the client's fault.
	KindInvalidInput
	// KindDownloadFailed: remote fetch problem, possibly transient.
	KindDownloadFailed
	// KindEncoderNotFound: encoder binary missing, a deployment problem.
	KindEncoderNotFound
	// KindMergeFailed: concatenation rejected even after the re-encode fallback.
	KindMergeFailed
	// KindAudioMuxFailed: audio replacement rejected by the encoder.
	KindAudioMuxFailed
	// KindPublishFailed: local I/O problem moving the finished artifact.
	KindPublishFailed
	// KindTimeout: the job exceeded its overall time budget.
	KindTimeout
	// KindResourceBusy: host too loaded to start another encode.
	KindResourceBusy
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindDownloadFailed:
		return "download_failed"
	case KindEncoderNotFound:
		return "encoder_not_found"
	case KindMergeFailed:
		return "merge_failed"
	case KindAudioMuxFailed:
		return "audio_mux_failed"
	case KindPublishFailed:
		return "publish_failed"
	case KindTimeout:
		return "timeout"
	case KindResourceBusy:
		return "resource_busy"
	default:
		return "internal"
	}
}

// Error is a classified job failure. Message is deliberately concise and safe
// to return to API callers; the full raw diagnostic lives in the job log.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func failf(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

func wrapf(kind Kind, cause error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), cause: cause}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
