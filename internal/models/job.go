package models

import (
	"fmt"
	"time"
)

// Job lifecycle states.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Job kinds accepted at submission.
const (
	KindMetadata  = "metadata"
	KindAnimation = "animation"
)

// FailureUnreadablePackage is recorded when the submitted package cannot be
// opened or is not a recognized presentation. Such jobs are never retried.
const FailureUnreadablePackage = "unreadable-package"

// Job correlates an asynchronous submission with its eventual result.
// Status and ResultPath are published together by the store; a reader never
// observes a half-completed job.
type Job struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	PackagePath   string    `json:"-"`
	StillImages   []string  `json:"-"`
	ResultPath    string    `json:"-"`
	Retrieved     bool      `json:"-"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// MediaKind is the kind-class a media payload belongs to. Sequence numbers
// are unique within a kind-class; audio and video share the "media" file
// prefix while images use "image".
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaRef points at one embedded media payload from the package.
type MediaRef struct {
	Kind MediaKind
	Seq  int
	Ext  string
	Data []byte
}

// Filename derives the archive name for this payload: media{N}.{ext} for
// audio/video, image{N}.{ext} for images.
func (m MediaRef) Filename() string {
	prefix := "media"
	if m.Kind == MediaImage {
		prefix = "image"
	}
	return fmt.Sprintf("%s%d.%s", prefix, m.Seq, m.Ext)
}

// AnimationSource identifies the GIF chosen as a slide's animation together
// with its declared placement on the slide, in EMU.
type AnimationSource struct {
	Ref MediaRef
	X   int64
	Y   int64
	W   int64
	H   int64
}

// SlideRecord is the per-slide view consumed by result packaging. Array
// fields are always non-nil: a slide with no data carries an empty slice,
// never a missing one.
type SlideRecord struct {
	Index             int
	Notes             string
	ExternalVideoURLs []string
	EmbeddedMedia     []MediaRef
	AspectRatio       string
	Animation         *AnimationSource
	StillImage        string
}
