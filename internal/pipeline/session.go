package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Session carries one user's artifacts through the pipeline. Artifacts only
// exist in memory and are replaced, never mutated.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.RWMutex
	state         types.State
	media         *types.UploadedMedia
	audio         *types.ExtractedAudio
	transcription *types.Transcription
	summary       *types.Summary
	running       string
	updatedAt     time.Time

	// busy is held for the whole duration of a stage run
	busy sync.Mutex
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		state:     types.StateIdle,
		updatedAt: now,
	}
}

// acquire takes the stage lock or fails with ErrSessionBusy.
func (s *Session) acquire(stage string) (release func(), err error) {
	if !s.busy.TryLock() {
		s.mu.RLock()
		running := s.running
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s in progress", ErrSessionBusy, running)
	}

	s.mu.Lock()
	s.running = stage
	s.updatedAt = time.Now()
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.running = ""
		s.updatedAt = time.Now()
		s.mu.Unlock()
		s.busy.Unlock()
	}, nil
}

func (s *Session) State() types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Media() *types.UploadedMedia {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.media
}

func (s *Session) Audio() *types.ExtractedAudio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audio
}

func (s *Session) Transcription() *types.Transcription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcription
}

func (s *Session) Summary() *types.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// UpdatedAt returns the last time the session was touched by a stage.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *Session) setMedia(m *types.UploadedMedia) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = m
	s.audio = nil
	s.transcription = nil
	s.summary = nil
	s.state = types.StateUploaded
	s.updatedAt = time.Now()
}

func (s *Session) setAudio(a *types.ExtractedAudio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = a
	s.transcription = nil
	s.summary = nil
	s.state = types.StateExtracted
	s.updatedAt = time.Now()
}

func (s *Session) setTranscription(t *types.Transcription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcription = t
	s.summary = nil
	s.state = types.StateTranscribed
	s.updatedAt = time.Now()
}

func (s *Session) setSummary(sum *types.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = sum
	s.state = types.StateSummarized
	s.updatedAt = time.Now()
}

// AudioInfo describes extracted audio without its bytes
type AudioInfo struct {
	Size            int       `json:"size"`
	DurationSeconds float64   `json:"duration_seconds"`
	SampleRate      int       `json:"sample_rate"`
	Channels        int       `json:"channels"`
	BitsPerSample   int       `json:"bits_per_sample"`
	Threads         int       `json:"threads"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

// Info is a point-in-time JSON view of a session
type Info struct {
	ID            string               `json:"id"`
	State         types.State          `json:"state"`
	Running       string               `json:"running,omitempty"`
	Media         *types.UploadedMedia `json:"media,omitempty"`
	Audio         *AudioInfo           `json:"audio,omitempty"`
	Transcription *types.Transcription `json:"transcription,omitempty"`
	Summary       *types.Summary       `json:"summary,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		ID:            s.ID,
		State:         s.state,
		Running:       s.running,
		Media:         s.media,
		Transcription: s.transcription,
		Summary:       s.summary,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.updatedAt,
	}
	if s.audio != nil {
		info.Audio = &AudioInfo{
			Size:            s.audio.Size(),
			DurationSeconds: s.audio.Duration().Seconds(),
			SampleRate:      s.audio.SampleRate,
			Channels:        s.audio.Channels,
			BitsPerSample:   s.audio.BitsPerSample,
			Threads:         s.audio.Threads,
			ExtractedAt:     s.audio.ExtractedAt,
		}
	}
	return info
}
