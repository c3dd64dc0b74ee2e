package feed

// MarkerKind identifies why an anchor was placed in the byte stream.
type MarkerKind int

const (
	// MarkerFormatChange marks the offset at which the audio format
	// (sample rate, channel count) described by the most recent RIFF
	// fmt chunk takes effect.
	MarkerFormatChange MarkerKind = iota
	// MarkerUtteranceBoundary marks the end of one utterance (chat turn)
	// and the potential start of the next.
	MarkerUtteranceBoundary
	// MarkerSilenceGap marks a producer-reported gap with no audio.
	MarkerSilenceGap
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerFormatChange:
		return "format-change"
	case MarkerUtteranceBoundary:
		return "utterance-boundary"
	case MarkerSilenceGap:
		return "silence-gap"
	default:
		return "unknown"
	}
}

// Marker is the anchor payload this package writes into the SRB. It is the
// concrete instance of the opaque "user-defined" anchor payload.
type Marker struct {
	Kind           MarkerKind
	ConversationID string
	ChatID         string
	SampleRate     int
	Channels       int
}
