package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/domain/entities"
	"github.com/satriahrh/rawatin/domain/repositories"
)

var testAudioConfig = repositories.AudioConfig{
	SampleRate:     16000,
	Encoding:       "LINEAR16",
	Language:       "id-ID",
	InterimResults: true,
}

func newTestSession(
	authorizer *fakeAuthorizer,
	audio *fakeAudioSource,
	transcriber *fakeTranscriber,
	sink *recordingSink,
) *CaptureSession {
	return NewCaptureSession(
		authorizer,
		audio,
		transcriber,
		NewClassifier(),
		sink,
		zap.NewNop(),
	)
}

func TestCaptureSessionEndToEnd(t *testing.T) {
	stream := newFakeStream()
	audioStream := newFakeAudioStream()
	sink := &recordingSink{}
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{streams: []*fakeAudioStream{audioStream}},
		&fakeTranscriber{available: true, streams: []*fakeStream{stream}},
		sink,
	)

	if !session.RequestAuthorization(context.Background()) {
		t.Fatal("expected authorization to be granted")
	}
	if err := session.Start(context.Background(), testAudioConfig); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !session.Snapshot().IsCapturing {
		t.Fatal("expected capturing after start")
	}

	audioStream.frames <- []byte("pcm-frame")
	waitFor(t, func() bool { return stream.fedCount() == 1 })

	stream.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindPartial, Text: "the do"}
	waitFor(t, func() bool { return session.Snapshot().LiveTranscript == "the do" })

	stream.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindPartial, Text: "the door is"}
	waitFor(t, func() bool { return session.Snapshot().LiveTranscript == "the door is" })

	stream.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindFinal, Text: "the door is stuck"}
	waitFor(t, func() bool { return session.Snapshot().Phase == entities.CapturePhaseCompleted })

	snapshot := session.Snapshot()
	if snapshot.IsCapturing {
		t.Error("expected capturing=false after finalization")
	}
	if snapshot.LastConfidence != 0.87 {
		t.Errorf("expected confidence 0.87, got %v", snapshot.LastConfidence)
	}
	if !strings.Contains(snapshot.LastClassificationText, "door mechanism issue") {
		t.Errorf("unexpected classification: %q", snapshot.LastClassificationText)
	}

	transcripts := sink.snapshotTranscripts()
	if !isSubsequence([]string{"the do", "the door is", "the door is stuck"}, transcripts) {
		t.Errorf("partials not observed in emission order: %v", transcripts)
	}

	phases := sink.snapshotPhases()
	if phases[len(phases)-1] != entities.CapturePhaseCompleted {
		t.Errorf("expected final phase Completed, got %v", phases[len(phases)-1])
	}

	if !audioStream.isClosed() {
		t.Error("expected audio tap to be released")
	}
}

func TestCaptureSessionStopIdempotent(t *testing.T) {
	stream := newFakeStream()
	audioStream := newFakeAudioStream()
	sink := &recordingSink{}
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{streams: []*fakeAudioStream{audioStream}},
		&fakeTranscriber{available: true, streams: []*fakeStream{stream}},
		sink,
	)

	// Stop from Idle is a no-op and must not panic.
	session.Stop()
	session.Stop()
	if session.Snapshot().Phase != entities.CapturePhaseIdle {
		t.Fatalf("expected Idle, got %v", session.Snapshot().Phase)
	}

	if err := session.Start(context.Background(), testAudioConfig); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session.Stop()
	first := session.Snapshot().Phase
	session.Stop()
	second := session.Snapshot().Phase

	if first != entities.CapturePhaseCompleted || second != first {
		t.Errorf("expected stable Completed phase, got %v then %v", first, second)
	}
	if !audioStream.isClosed() {
		t.Error("expected audio tap to be released on stop")
	}
	if stream.cancelCount() == 0 {
		t.Error("expected in-flight transcription to be cancelled")
	}
	if stream.endAudioCount() == 0 {
		t.Error("expected end-of-audio to be signaled")
	}
}

func TestCaptureSessionStaleGenerationDiscarded(t *testing.T) {
	firstStream := newFakeStream()
	secondStream := newFakeStream()
	sink := &recordingSink{}
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{streams: []*fakeAudioStream{newFakeAudioStream(), newFakeAudioStream()}},
		&fakeTranscriber{available: true, streams: []*fakeStream{firstStream, secondStream}},
		sink,
	)

	if err := session.Start(context.Background(), testAudioConfig); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := session.Start(context.Background(), testAudioConfig); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	// The first stream was superseded; its final result is stale and can
	// never mutate state, no matter when it is delivered.
	firstStream.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindFinal, Text: "stale water leak"}

	secondStream.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindFinal, Text: "the door is stuck"}
	waitFor(t, func() bool { return session.Snapshot().Phase == entities.CapturePhaseCompleted })

	snapshot := session.Snapshot()
	if snapshot.LastConfidence != 0.87 {
		t.Errorf("expected the current generation's classification, got %v", snapshot.LastConfidence)
	}
	for _, text := range sink.snapshotTranscripts() {
		if text == "stale water leak" {
			t.Fatal("stale transcript leaked into published state")
		}
	}
	if got := len(sink.snapshotClassifications()); got != 1 {
		t.Errorf("expected exactly one classification, got %d", got)
	}
	if firstStream.cancelCount() == 0 {
		t.Error("expected superseded stream to be cancelled")
	}
}

func TestCaptureSessionConcurrentStartsReleaseLoser(t *testing.T) {
	firstStream := newFakeStream()
	secondStream := newFakeStream()
	tapA := newFakeAudioStream()
	tapB := newFakeAudioStream()
	gate := make(chan struct{})
	transcriber := &fakeTranscriber{
		available: true,
		streams:   []*fakeStream{firstStream, secondStream},
		beginGate: gate,
	}
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{streams: []*fakeAudioStream{tapA, tapB}},
		transcriber,
		&recordingSink{},
	)

	// Two start attempts race; the gate holds the first mid-setup while the
	// second is already underway.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := session.Start(context.Background(), testAudioConfig); err != nil {
				t.Errorf("start failed: %v", err)
			}
		}()
	}
	close(gate)
	wg.Wait()

	session.Stop()

	// Whichever attempt lost must have been released at supersession, the
	// winner at Stop. Nothing may leak.
	if firstStream.cancelCount() == 0 {
		t.Error("first recognition stream never cancelled")
	}
	if secondStream.cancelCount() == 0 {
		t.Error("second recognition stream never cancelled")
	}
	if !tapA.isClosed() {
		t.Error("first audio tap never closed")
	}
	if !tapB.isClosed() {
		t.Error("second audio tap never closed")
	}
}

func TestCaptureSessionTranscriberError(t *testing.T) {
	stream := newFakeStream()
	sink := &recordingSink{}
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{streams: []*fakeAudioStream{newFakeAudioStream()}},
		&fakeTranscriber{available: true, streams: []*fakeStream{stream}},
		sink,
	)

	if err := session.Start(context.Background(), testAudioConfig); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stream.events <- entities.TranscriptEvent{Kind: entities.TranscriptKindError, Err: errors.New("recognizer blew up")}
	waitFor(t, func() bool { return session.Snapshot().Phase == entities.CapturePhaseFailed })

	errs := sink.snapshotErrors()
	if len(errs) == 0 || !errors.Is(errs[len(errs)-1], ErrTranscription) {
		t.Errorf("expected published TranscriptionError, got %v", errs)
	}
	if len(sink.snapshotClassifications()) != 0 {
		t.Error("classifier must not run on the error path")
	}
}

func TestCaptureSessionFeedFailureFailsCapture(t *testing.T) {
	stream := newFakeStream()
	stream.feedErr = errors.New("stream torn down")
	audioStream := newFakeAudioStream()
	sink := &recordingSink{}
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{streams: []*fakeAudioStream{audioStream}},
		&fakeTranscriber{available: true, streams: []*fakeStream{stream}},
		sink,
	)

	if err := session.Start(context.Background(), testAudioConfig); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	audioStream.frames <- []byte("pcm-frame")

	waitFor(t, func() bool { return session.Snapshot().Phase == entities.CapturePhaseFailed })
}

func TestCaptureSessionStartTranscriberUnavailable(t *testing.T) {
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{},
		&fakeTranscriber{available: false},
		&recordingSink{},
	)

	if err := session.Start(context.Background(), testAudioConfig); !errors.Is(err, ErrTranscriberUnavailable) {
		t.Fatalf("expected ErrTranscriberUnavailable, got %v", err)
	}
}

func TestCaptureSessionStartStreamCreationFails(t *testing.T) {
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{},
		&fakeTranscriber{available: true, beginErr: errors.New("quota exceeded")},
		&recordingSink{},
	)

	if err := session.Start(context.Background(), testAudioConfig); !errors.Is(err, ErrRequestCreation) {
		t.Fatalf("expected ErrRequestCreation, got %v", err)
	}
}

func TestCaptureSessionStartAudioOpenFails(t *testing.T) {
	stream := newFakeStream()
	session := newTestSession(
		&fakeAuthorizer{granted: true},
		&fakeAudioSource{openErr: errors.New("device busy")},
		&fakeTranscriber{available: true, streams: []*fakeStream{stream}},
		&recordingSink{},
	)

	if err := session.Start(context.Background(), testAudioConfig); !errors.Is(err, ErrAudioEngine) {
		t.Fatalf("expected ErrAudioEngine, got %v", err)
	}
	if stream.cancelCount() == 0 {
		t.Error("expected the recognition stream to be cancelled on audio failure")
	}
}

func TestCaptureSessionAuthorizationDenied(t *testing.T) {
	session := newTestSession(
		&fakeAuthorizer{granted: false},
		&fakeAudioSource{},
		&fakeTranscriber{available: true},
		&recordingSink{},
	)

	if session.RequestAuthorization(context.Background()) {
		t.Fatal("expected denial")
	}
	if session.Snapshot().Phase != entities.CapturePhaseFailed {
		t.Errorf("expected Failed after denial, got %v", session.Snapshot().Phase)
	}
}

func TestCaptureSessionStopDuringAuthorization(t *testing.T) {
	authorizer := &fakeAuthorizer{
		granted: true,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	session := newTestSession(
		authorizer,
		&fakeAudioSource{},
		&fakeTranscriber{available: true},
		&recordingSink{},
	)

	result := make(chan bool, 1)
	go func() {
		result <- session.RequestAuthorization(context.Background())
	}()

	<-authorizer.started
	session.Stop()
	close(authorizer.release)

	if <-result {
		t.Fatal("authorization granted after stop must not let the capture proceed")
	}
}

// waitFor polls until the condition holds or the test deadline passes
func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func isSubsequence(want, got []string) bool {
	i := 0
	for _, text := range got {
		if i < len(want) && text == want[i] {
			i++
		}
	}
	return i == len(want)
}

type fakeAuthorizer struct {
	granted bool
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeAuthorizer) RequestCaptureAuthorization(ctx context.Context) (bool, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.granted, f.err
}

type fakeAudioSource struct {
	streams []*fakeAudioStream
	openErr error
	calls   int
}

func (f *fakeAudioSource) Open(_ context.Context, _ repositories.AudioConfig) (repositories.AudioStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.calls >= len(f.streams) {
		return nil, errors.New("no audio stream configured")
	}
	stream := f.streams[f.calls]
	f.calls++
	return stream, nil
}

type fakeAudioStream struct {
	frames chan []byte
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func newFakeAudioStream() *fakeAudioStream {
	return &fakeAudioStream{frames: make(chan []byte, 16)}
}

func (f *fakeAudioStream) Frames() <-chan []byte { return f.frames }

func (f *fakeAudioStream) Close() error {
	f.once.Do(func() { close(f.frames) })
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAudioStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeTranscriber struct {
	available bool
	streams   []*fakeStream
	beginErr  error
	calls     int

	// beginGate, when set, blocks BeginStream until the test releases it,
	// holding a start attempt mid-flight.
	beginGate chan struct{}
}

func (f *fakeTranscriber) Available() bool { return f.available }

func (f *fakeTranscriber) BeginStream(_ context.Context, _ repositories.AudioConfig) (repositories.TranscriptionStream, error) {
	if f.beginGate != nil {
		<-f.beginGate
	}
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	if f.calls >= len(f.streams) {
		return nil, errors.New("no recognition stream configured")
	}
	stream := f.streams[f.calls]
	f.calls++
	return stream, nil
}

// fakeStream leaves its events channel open so tests can deliver events even
// after the session released the stream, mimicking late callbacks.
type fakeStream struct {
	events  chan entities.TranscriptEvent
	feedErr error

	mu        sync.Mutex
	fed       int
	endAudios int
	cancels   int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan entities.TranscriptEvent, 16)}
}

func (f *fakeStream) Feed(_ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feedErr != nil {
		return f.feedErr
	}
	f.fed++
	return nil
}

func (f *fakeStream) EndAudio() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endAudios++
	return nil
}

func (f *fakeStream) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeStream) Events() <-chan entities.TranscriptEvent { return f.events }

func (f *fakeStream) fedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fed
}

func (f *fakeStream) endAudioCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endAudios
}

func (f *fakeStream) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

type recordingSink struct {
	mu              sync.Mutex
	phases          []entities.CapturePhase
	transcripts     []string
	classifications []entities.ClassificationResult
	errs            []error
}

func (r *recordingSink) CapturePhaseChanged(phase entities.CapturePhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recordingSink) LiveTranscript(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, text)
}

func (r *recordingSink) Classification(result entities.ClassificationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifications = append(r.classifications, result)
}

func (r *recordingSink) CaptureError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingSink) snapshotPhases() []entities.CapturePhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.CapturePhase, len(r.phases))
	copy(out, r.phases)
	return out
}

func (r *recordingSink) snapshotTranscripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.transcripts))
	copy(out, r.transcripts)
	return out
}

func (r *recordingSink) snapshotClassifications() []entities.ClassificationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.ClassificationResult, len(r.classifications))
	copy(out, r.classifications)
	return out
}

func (r *recordingSink) snapshotErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}
