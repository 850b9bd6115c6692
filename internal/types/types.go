package types

import (
	"fmt"
	"strings"
	"time"
)

// Session state constants. A session only moves forward on a successful stage
// result; a new upload or extraction resets everything after it.
type State string

const (
	StateIdle        State = "IDLE"
	StateUploaded    State = "UPLOADED"
	StateExtracted   State = "EXTRACTED"
	StateTranscribed State = "TRANSCRIBED"
	StateSummarized  State = "SUMMARIZED"
)

// Stage names used in progress events and logs
const (
	StageUpload        = "upload"
	StageExtraction    = "extraction"
	StageTranscription = "transcription"
	StageSummarization = "summarization"
)

// Fixed extraction output format
const (
	SampleRate    = 44100
	Channels      = 2
	BitsPerSample = 16
	WAVHeaderSize = 44
)

// ModelSize selects a Whisper checkpoint, smallest to largest.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// ModelSizes lists every accepted model size in ascending order.
var ModelSizes = []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge}

// ParseModelSize validates a model size name.
func ParseModelSize(s string) (ModelSize, error) {
	size := ModelSize(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ModelSizes {
		if size == known {
			return size, nil
		}
	}
	return "", fmt.Errorf("unknown model size %q (want tiny|base|small|medium|large)", s)
}

// UploadedMedia is a single video file received from the user
type UploadedMedia struct {
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	Data       []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ExtractedAudio holds a complete WAV file (PCM s16le, 44.1kHz, stereo).
// The buffer is owned by the struct and never refers back to a temp file.
type ExtractedAudio struct {
	Data          []byte    `json:"-"`
	SampleRate    int       `json:"sample_rate"`
	Channels      int       `json:"channels"`
	BitsPerSample int       `json:"bits_per_sample"`
	Threads       int       `json:"threads"`
	ExtractedAt   time.Time `json:"extracted_at"`
}

// Size returns the buffer length in bytes.
func (a *ExtractedAudio) Size() int {
	return len(a.Data)
}

// Duration estimates the playback length from the PCM payload size.
func (a *ExtractedAudio) Duration() time.Duration {
	bytesPerSecond := a.SampleRate * a.Channels * a.BitsPerSample / 8
	if bytesPerSecond == 0 || len(a.Data) <= WAVHeaderSize {
		return 0
	}
	payload := len(a.Data) - WAVHeaderSize
	return time.Duration(float64(payload) / float64(bytesPerSecond) * float64(time.Second))
}

// Transcription is the text produced by the speech model
type Transcription struct {
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	Model       ModelSize `json:"model"`
	Backend     string    `json:"backend"`
	Segments    []Segment `json:"segments,omitempty"`
	WordCount   int       `json:"word_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Summary is the LLM output for a transcription
type Summary struct {
	Text        string    `json:"text"`
	Model       string    `json:"model"`
	Prompt      string    `json:"prompt"`
	Chunks      int       `json:"chunks"`
	Depth       int       `json:"depth"`
	GeneratedAt time.Time `json:"generated_at"`
}
