package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkbox/internal/domain"
	"talkbox/internal/ports"
)

var testLogger = zerolog.Nop()

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

func (f *fakeAudioCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAudioSession serves its chunks, then blocks like a live microphone
// until stopped.
type fakeAudioSession struct {
	mu         sync.Mutex
	chunks     [][]byte
	index      int
	stopped    chan struct{}
	stopOnce   sync.Once
	stopCalls  int
	closeCalls int
	stopErr    error
}

func newFakeAudioSession(chunks ...string) *fakeAudioSession {
	s := &fakeAudioSession{stopped: make(chan struct{})}
	for _, chunk := range chunks {
		s.chunks = append(s.chunks, []byte(chunk))
	}
	return s
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	for {
		f.mu.Lock()
		if f.index < len(f.chunks) {
			n := copy(p, f.chunks[f.index])
			f.index++
			f.mu.Unlock()
			return n, nil
		}
		f.mu.Unlock()

		<-f.stopped
		f.mu.Lock()
		drained := f.index >= len(f.chunks)
		f.mu.Unlock()
		if drained {
			return 0, io.EOF
		}
	}
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return f.stopErr
}

func (f *fakeAudioSession) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) counts() (stops int, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls, f.closeCalls
}

type fakeTicker struct {
	ch chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

func (f *fakeTicker) factory() ports.TickerFactory {
	return func(time.Duration) ports.Ticker { return f }
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []byte, seconds int) (domain.AudioClip, error) {
	return domain.AudioClip{Data: append([]byte(nil), pcm...), MIMEType: "audio/wav", Seconds: seconds}, nil
}

type fakeNarrator struct {
	available bool
	log       *eventLog
	// gate, when set, holds every narration until a value is received.
	gate chan struct{}

	active  atomic.Int32
	overlap atomic.Bool

	mu     sync.Mutex
	spoken []string
}

func (f *fakeNarrator) Available() bool { return f.available }

func (f *fakeNarrator) Speak(ctx context.Context, text string) error {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)

	f.log.add("speak:" + text)
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (f *fakeNarrator) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

type recordingEvent struct {
	state   domain.SessionState
	reason  domain.SessionStateReason
	elapsed int
}

type userBubbleEvent struct {
	id     domain.BubbleID
	bubble domain.UserBubble
}

type alertEvent struct {
	code    domain.ErrorCode
	message string
}

type fakeView struct {
	mu  sync.Mutex
	log *eventLog

	nextID       int
	userBubbles  []userBubbleEvent
	replacements []userBubbleEvent
	botBubbles   []string
	recording    []recordingEvent
	finished     []string
	exportStates []bool
	alerts       []alertEvent
	opened       []string
}

func (f *fakeView) newID(prefix string) domain.BubbleID {
	f.nextID++
	return domain.BubbleID(fmt.Sprintf("%s%d", prefix, f.nextID))
}

func (f *fakeView) AppendUserBubble(bubble domain.UserBubble) domain.BubbleID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID("u")
	f.userBubbles = append(f.userBubbles, userBubbleEvent{id: id, bubble: bubble})
	return id
}

func (f *fakeView) ReplaceUserBubble(id domain.BubbleID, bubble domain.UserBubble) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replacements = append(f.replacements, userBubbleEvent{id: id, bubble: bubble})
}

func (f *fakeView) AppendBotBubble(bubble domain.BotBubble) domain.BubbleID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botBubbles = append(f.botBubbles, bubble.RichText)
	return f.newID("b")
}

func (f *fakeView) SetSpeaking(id domain.BubbleID, speaking bool) {
	if speaking {
		f.log.add("show:" + string(id))
	} else {
		f.log.add("hide:" + string(id))
	}
}

func (f *fakeView) RecordingStateChanged(state domain.SessionState, reason domain.SessionStateReason, elapsed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = append(f.recording, recordingEvent{state: state, reason: reason, elapsed: elapsed})
}

func (f *fakeView) ConversationFinished(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, conversationID)
}

func (f *fakeView) ExportStateChanged(busy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportStates = append(f.exportStates, busy)
}

func (f *fakeView) Alert(code domain.ErrorCode, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alertEvent{code: code, message: message})
}

func (f *fakeView) OpenURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
}

func (f *fakeView) snapshotRecording() []recordingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordingEvent, len(f.recording))
	copy(out, f.recording)
	return out
}

func (f *fakeView) snapshotBots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.botBubbles))
	copy(out, f.botBubbles)
	return out
}

func (f *fakeView) snapshotUsers() ([]userBubbleEvent, []userBubbleEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]userBubbleEvent, len(f.userBubbles))
	copy(users, f.userBubbles)
	replaced := make([]userBubbleEvent, len(f.replacements))
	copy(replaced, f.replacements)
	return users, replaced
}

type fakeBackend struct {
	mu sync.Mutex

	start     func(userID string) (domain.ConversationStart, error)
	sendText  func(id, text string) (domain.Reply, error)
	sendAudio func(id string, audio []byte) (domain.Reply, error)
	export    func(id string) (domain.Export, error)

	userIDs     []string
	textCalls   int
	audioCalls  int
	exportCalls int
}

func (f *fakeBackend) StartConversation(_ context.Context, userID string) (domain.ConversationStart, error) {
	f.mu.Lock()
	f.userIDs = append(f.userIDs, userID)
	f.mu.Unlock()
	if f.start == nil {
		return domain.ConversationStart{ConversationID: "c1", Greeting: "Bonjour !"}, nil
	}
	return f.start(userID)
}

func (f *fakeBackend) SendText(_ context.Context, id, text string) (domain.Reply, error) {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.sendText == nil {
		return domain.Reply{Message: "ok"}, nil
	}
	return f.sendText(id, text)
}

func (f *fakeBackend) SendAudio(_ context.Context, id string, audio []byte) (domain.Reply, error) {
	f.mu.Lock()
	f.audioCalls++
	f.mu.Unlock()
	if f.sendAudio == nil {
		return domain.Reply{Message: "ok"}, nil
	}
	return f.sendAudio(id, audio)
}

func (f *fakeBackend) RequestExport(_ context.Context, id string) (domain.Export, error) {
	f.mu.Lock()
	f.exportCalls++
	f.mu.Unlock()
	if f.export == nil {
		return domain.Export{}, nil
	}
	return f.export(id)
}

type fakeFormatter struct{}

func (fakeFormatter) Format(text string) string { return text }

func (fakeFormatter) RewriteURL(rawURL string) string {
	const from = "http://10.0.0.1:5001"
	if len(rawURL) >= len(from) && rawURL[:len(from)] == from {
		return "https://app.example.org" + rawURL[len(from):]
	}
	return rawURL
}
