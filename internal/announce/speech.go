package announce

import (
	"sync"
	"time"
)

type SpeechState string

const (
	StateIdle     SpeechState = "idle"
	StateSpeaking SpeechState = "speaking"
)

// SpeechController is the shared "speaking" indicator. The announcement
// worker holds it for the duration of playback; the recognizer polls
// CaptureAllowed and drops audio while it is held or within EchoTail after
// playback ended.
type SpeechController struct {
	mu        sync.Mutex
	state     SpeechState
	echoTail  time.Duration
	endedAt   time.Time
	utterance int
}

func NewSpeechController(echoTail time.Duration) *SpeechController {
	if echoTail < 0 {
		echoTail = 0
	}
	return &SpeechController{
		state:    StateIdle,
		echoTail: echoTail,
	}
}

func (c *SpeechController) OnTTSAudioStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateSpeaking
	c.utterance++
}

func (c *SpeechController) OnTTSAudioEnd(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSpeaking {
		c.endedAt = now
	}
	c.state = StateIdle
}

// CaptureAllowed never blocks: a held indicator means "skip this buffer".
func (c *SpeechController) CaptureAllowed(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSpeaking {
		return false
	}
	if c.endedAt.IsZero() {
		return true
	}
	return now.Sub(c.endedAt) >= c.echoTail
}

func (c *SpeechController) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSpeaking
}

func (c *SpeechController) State() SpeechState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Utterances reports how many playbacks have started.
func (c *SpeechController) Utterances() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.utterance
}
