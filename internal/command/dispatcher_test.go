package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/sightline/internal/announce"
	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/shared"
)

type announcement struct {
	text     string
	priority announce.Priority
}

type fakeAnnouncer struct {
	mu     sync.Mutex
	items  []announcement
	closed bool
}

func (a *fakeAnnouncer) Enqueue(text string, priority announce.Priority) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.items = append(a.items, announcement{text: text, priority: priority})
}

func (a *fakeAnnouncer) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func (a *fakeAnnouncer) Items() []announcement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]announcement(nil), a.items...)
}

func (a *fakeAnnouncer) Last(t *testing.T) announcement {
	t.Helper()
	items := a.Items()
	if len(items) == 0 {
		t.Fatal("expected an announcement")
	}
	return items[len(items)-1]
}

type fakeFaces struct {
	ids []perception.Identity
	err error
}

func (f *fakeFaces) Match(ctx context.Context, frame *perception.Frame) ([]perception.Identity, error) {
	return f.ids, f.err
}

type fakeReader struct {
	text  string
	err   error
	hints []perception.Box
}

func (f *fakeReader) Read(ctx context.Context, frame *perception.Frame, hints []perception.Box) (string, error) {
	f.hints = hints
	return f.text, f.err
}

type fakeAssistant struct {
	reply  string
	err    error
	prompt string
	panic  bool
}

func (f *fakeAssistant) Respond(ctx context.Context, prompt string) (string, error) {
	if f.panic {
		panic("assistant exploded")
	}
	f.prompt = prompt
	return f.reply, f.err
}

type fixture struct {
	dispatcher *Dispatcher
	announcer  *fakeAnnouncer
	store      *perception.Store
	frames     *perception.FrameStore
	active     *perception.Switch
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		announcer: &fakeAnnouncer{},
		store:     perception.NewStore(),
		frames:    perception.NewFrameStore(),
		active:    perception.NewSwitch(false),
	}
	cfg := Config{
		Announcer: f.announcer,
		Store:     f.store,
		Frames:    f.frames,
		Active:    f.active,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := NewDispatcher(cfg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	f.dispatcher = d
	return f
}

func TestDispatcher_StartStop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.dispatcher.Handle(ctx, "start")
	if !f.active.On() {
		t.Fatal("start should enable detection")
	}
	if got := f.announcer.Last(t); got.text != TextStarting || got.priority != announce.PriorityStatus {
		t.Errorf("got %+v", got)
	}

	f.dispatcher.Handle(ctx, "please stop")
	if f.active.On() {
		t.Fatal("stop should disable detection")
	}
	if got := f.announcer.Last(t); got.text != TextStopping || got.priority != announce.PriorityStatus {
		t.Errorf("got %+v", got)
	}
}

func TestDispatcher_WhatIsAhead(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.dispatcher.Handle(ctx, "what's in front of me?")
	if got := f.announcer.Last(t); got.text != "In front of you: nothing detected." || got.priority != announce.PriorityQuery {
		t.Errorf("got %+v", got)
	}

	f.store.UpdateDetections([]perception.Detection{{Label: "chair"}, {Label: "person"}, {Label: "chair"}}, time.Now())
	f.dispatcher.Handle(ctx, "whats in fronta me")
	if got := f.announcer.Last(t); got.text != "In front of you: chair, person." {
		t.Errorf("got %q", got.text)
	}
}

func TestDispatcher_WhoIsAhead(t *testing.T) {
	faces := &fakeFaces{}
	f := newFixture(t, func(c *Config) { c.Faces = faces })
	ctx := context.Background()

	f.dispatcher.Handle(ctx, "who is in front of me")
	if got := f.announcer.Last(t); got.text != TextNoFaceFrame {
		t.Fatalf("got %q, want no-frame message", got.text)
	}

	f.frames.Put(&perception.Frame{Data: []byte{1}})

	tests := []struct {
		ids  []perception.Identity
		want string
	}{
		{nil, TextNobody},
		{[]perception.Identity{{Name: "Ada", Known: true}}, "I see Ada."},
		{[]perception.Identity{{Name: "Ada", Known: true}, {}}, "I see Ada and 1 other person."},
		{[]perception.Identity{{Name: "Ada", Known: true}, {Name: "Bo", Known: true}, {}, {}}, "I see Ada, Bo and 2 other people."},
		{[]perception.Identity{{}}, "There is an unknown person in front of you."},
		{[]perception.Identity{{}, {}, {}}, "There are 3 unknown people in front of you."},
	}
	for _, tt := range tests {
		faces.ids = tt.ids
		f.dispatcher.Handle(ctx, "who is this")
		if got := f.announcer.Last(t); got.text != tt.want || got.priority != announce.PriorityQuery {
			t.Errorf("ids %+v: got %+v, want %q", tt.ids, got, tt.want)
		}
	}

	faces.err = errors.New("sidecar down")
	f.dispatcher.Handle(ctx, "who is this")
	if got := f.announcer.Last(t); got.text != TextFacesFailed {
		t.Errorf("got %q, want apology", got.text)
	}
}

func TestDispatcher_ReadText(t *testing.T) {
	reader := &fakeReader{}
	f := newFixture(t, func(c *Config) { c.Text = reader })
	ctx := context.Background()

	f.dispatcher.Handle(ctx, "read this")
	if got := f.announcer.Last(t); got.text != TextNoReadFrame {
		t.Fatalf("got %q", got.text)
	}

	f.frames.Put(&perception.Frame{Data: []byte{1}})
	box := perception.Box{X1: 1, Y1: 2, X2: 3, Y2: 4}
	f.store.UpdateDetections([]perception.Detection{{Label: "book", Box: box}}, time.Now())

	reader.text = "   "
	f.dispatcher.Handle(ctx, "read the text")
	if got := f.announcer.Last(t); got.text != TextNoText {
		t.Errorf("got %q", got.text)
	}
	if len(reader.hints) != 1 || reader.hints[0] != box {
		t.Errorf("hints = %+v, want detection boxes", reader.hints)
	}

	reader.text = "Exit only"
	f.dispatcher.Handle(ctx, "read text")
	if got := f.announcer.Last(t); got.text != "Exit only" {
		t.Errorf("got %q", got.text)
	}

	long := strings.Repeat("a", 260) + "\n" + strings.Repeat("b", 100)
	reader.text = long
	before := len(f.announcer.Items())
	f.dispatcher.Handle(ctx, "read that")
	parts := f.announcer.Items()[before:]
	if len(parts) != 3 {
		t.Fatalf("expected 3 announcements for long text, got %d", len(parts))
	}
	if want := "I detected a long text. Starting: " + strings.Repeat("a", 250); parts[0].text != want {
		t.Errorf("preview = %q", parts[0].text)
	}
	if parts[1].text != TextReadingRest || parts[2].text != long {
		t.Errorf("unexpected parts %+v", parts[1:])
	}
}

func TestDispatcher_Conversation(t *testing.T) {
	assistant := &fakeAssistant{reply: "It is sunny."}
	f := newFixture(t, func(c *Config) { c.Assistant = assistant })
	ctx := context.Background()

	f.store.UpdateDetections([]perception.Detection{{Label: "dog"}}, time.Now())
	f.store.SetObstacle(true, true, time.Now())

	cmd := f.dispatcher.Handle(ctx, "how is the weather today")
	if cmd != Conversation {
		t.Fatalf("command = %s, want conversation", cmd)
	}
	if got := f.announcer.Last(t); got.text != "It is sunny." || got.priority != announce.PriorityConversation {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(assistant.prompt, "dog") || !strings.Contains(assistant.prompt, "obstacle directly ahead") {
		t.Errorf("prompt missing perception context: %q", assistant.prompt)
	}
	if !strings.HasSuffix(assistant.prompt, "User: how is the weather today") {
		t.Errorf("prompt missing transcript: %q", assistant.prompt)
	}
}

func TestDispatcher_ConversationFailureIsSpoken(t *testing.T) {
	assistant := &fakeAssistant{err: errors.New("status 503")}
	f := newFixture(t, func(c *Config) { c.Assistant = assistant })

	f.dispatcher.Handle(context.Background(), "tell me a joke")
	if got := f.announcer.Last(t); got.text != TextAssistantDown {
		t.Errorf("got %q, want apology", got.text)
	}

	assistant.err = nil
	assistant.panic = true
	cmd := f.dispatcher.Handle(context.Background(), "tell me another joke")
	if cmd != Conversation {
		t.Errorf("command = %s, want conversation", cmd)
	}
	if got := f.announcer.Last(t); got.text != TextUnavailable {
		t.Errorf("got %q after a panicking command, want %q", got.text, TextUnavailable)
	}
}

func TestDispatcher_PanickingCommandHookIsSpoken(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.OnCommand = func(string, Match) { panic("recorder exploded") }
	})

	cmd := f.dispatcher.Handle(context.Background(), "start")
	if cmd != Start {
		t.Errorf("command = %s, want start", cmd)
	}
	items := f.announcer.Items()
	if len(items) != 1 || items[0].text != TextUnavailable {
		t.Errorf("announcements = %+v, want one unavailable notice", items)
	}
}

func TestDispatcher_ExitEndsRun(t *testing.T) {
	exited := make(chan struct{})
	f := newFixture(t, func(c *Config) { c.OnExit = func() { close(exited) } })

	if err := f.dispatcher.Submit("start"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.dispatcher.Submit("Quit."); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := f.dispatcher.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil on exit", err)
	}

	select {
	case <-exited:
	default:
		t.Fatal("OnExit was not called")
	}

	items := f.announcer.Items()
	if got := items[len(items)-1]; got.text != TextGoodbye || got.priority != announce.PriorityConversation {
		t.Errorf("last announcement = %+v, want farewell", got)
	}
	if !f.announcer.closed {
		t.Error("announcer should be closed after exit")
	}
}

func TestDispatcher_RunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.dispatcher.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestDispatcher_SubmitWhenFull(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.QueueSize = 1 })

	if err := f.dispatcher.Submit("start"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := f.dispatcher.Submit("stop"); !errors.Is(err, shared.ErrUnavailable) {
		t.Fatalf("second Submit = %v, want ErrUnavailable", err)
	}
	if err := f.dispatcher.Submit("   "); err != nil {
		t.Fatalf("blank Submit = %v, want nil", err)
	}
}

func TestNewDispatcher_RequiresAnnouncer(t *testing.T) {
	if _, err := NewDispatcher(Config{}); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDispatcher_OnCommandSeesEveryMatch(t *testing.T) {
	var seen []Command
	f := newFixture(t, func(c *Config) {
		c.OnCommand = func(transcript string, m Match) { seen = append(seen, m.Command) }
	})

	f.dispatcher.Handle(context.Background(), "stop")
	f.dispatcher.Handle(context.Background(), "what's in front of me")

	if len(seen) != 2 || seen[0] != Stop || seen[1] != WhatIsAhead {
		t.Errorf("OnCommand saw %v, want [stop what-is-in-front]", seen)
	}
}
