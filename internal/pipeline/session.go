// Package pipeline drives a lab report through recognition, structuring and translation.
//
// A Session owns the user-visible State. All mutations happen on the goroutine running
// Session.Run; recognition and model calls run in the background and hand their
// results back to it. Each stage invocation returns a Task that finishes after its
// outcome is visible in State.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"labscan/internal/llm"
	"labscan/internal/logger"
	"labscan/internal/ocr"
)

var (
	// ErrSessionClosed is returned for work submitted after Run has stopped.
	ErrSessionClosed = errors.New("pipeline session closed")

	// ErrSessionRunning is returned by a second concurrent call to Run.
	ErrSessionRunning = errors.New("pipeline session already running")

	// ErrSuperseded finishes a task whose result was replaced by a newer invocation.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// TextRecognizer turns an image into text. *ocr.Recognizer implements it.
type TextRecognizer interface {
	Recognize(ctx context.Context, img *ocr.CapturedImage) (string, error)
}

// message is a closure for the owner goroutine. reject runs instead when the session
// has closed.
type message struct {
	apply  func()
	reject func()
}

type stageTracker struct {
	inflight int
	gen      uint64
	current  *Task
}

// Session holds pipeline state for one document at a time.
type Session struct {
	recognizer TextRecognizer
	completer  llm.Completer
	supersede  bool
	log        zerolog.Logger

	running atomic.Bool
	wake    chan struct{}

	mu          sync.Mutex
	queue       []message
	closed      bool
	published   State
	subscribers map[int]chan State
	nextSub     int

	// owned by the Run goroutine
	runCtx context.Context
	state  State
	stages map[Stage]*stageTracker
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithoutSupersede applies every completion in the order it arrives, so a slow older
// call may overwrite the result of a newer one.
func WithoutSupersede() SessionOption {
	return func(s *Session) { s.supersede = false }
}

// WithLanguage sets the initial translation target.
func WithLanguage(lang Language) SessionOption {
	return func(s *Session) {
		if lang.Valid() {
			s.state.Language = lang
		}
	}
}

// WithSessionLogger replaces the component logger.
func WithSessionLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates a session. Call Run before submitting work.
func NewSession(recognizer TextRecognizer, completer llm.Completer, opts ...SessionOption) *Session {
	s := &Session{
		recognizer:  recognizer,
		completer:   completer,
		supersede:   true,
		log:         logger.WithComponent("pipeline"),
		wake:        make(chan struct{}, 1),
		subscribers: make(map[int]chan State),
		state:       State{Language: English},
		stages: map[Stage]*stageTracker{
			StageRecognize: {},
			StageStructure: {},
			StageTranslate: {},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.published = s.state.clone()
	return s
}

// Run processes submitted work until ctx is done. Stopping cancels every in-flight call;
// their tasks, and anything submitted later, finish with ErrSessionClosed.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = runCtx

	s.log.Debug().Bool("supersede", s.supersede).Msg("Pipeline session started")

	for {
		select {
		case <-runCtx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.wake:
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()

			for _, msg := range batch {
				msg.apply()
			}
		}
	}
}

func (s *Session) shutdown() {
	// calls still running are abandoned, so nothing is in flight any more
	for stage, tr := range s.stages {
		tr.inflight = 0
		tr.current = nil
		s.state.setInFlight(stage, false)
	}
	s.publish()

	s.mu.Lock()
	s.closed = true
	pending := s.queue
	s.queue = nil
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()

	for _, msg := range pending {
		msg.reject()
	}
	s.log.Debug().Msg("Pipeline session stopped")
}

// post hands msg to the owner goroutine.
func (s *Session) post(msg message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		msg.reject()
		return
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Recognize extracts text from img. On success RecognizedText is replaced and
// StructuredText is cleared. A nil image returns a finished task with ocr.ErrNoImage
// and leaves State untouched.
func (s *Session) Recognize(img *ocr.CapturedImage) *Task {
	if img == nil {
		s.log.Warn().Msg("Recognition requested without an image")
		return finishedTask(StageRecognize, ocr.ErrNoImage)
	}

	task := newTask(StageRecognize)
	s.submit(task, func(ctx context.Context) (string, error) {
		return s.recognizer.Recognize(ctx, img)
	}, func(text string) {
		s.state.RecognizedText = text
		s.state.StructuredText = ""
		// the table in flight describes the previous document
		s.supersedeStage(StageStructure)
	})
	return task
}

// ExtractStructuredData asks the model to tabulate text. Empty text still issues a call.
func (s *Session) ExtractStructuredData(text string) *Task {
	prompt := StructuringPrompt(text)
	task := newTask(StageStructure)
	s.submit(task, func(ctx context.Context) (string, error) {
		return s.completer.Complete(ctx, prompt)
	}, func(result string) {
		s.state.StructuredText = result
	})
	return task
}

// Translate asks the model to translate text into lang.
func (s *Session) Translate(text string, lang Language) *Task {
	prompt := TranslationPrompt(text, lang)
	task := newTask(StageTranslate)
	s.submit(task, func(ctx context.Context) (string, error) {
		return s.completer.Complete(ctx, prompt)
	}, func(result string) {
		s.state.TranslatedText = result
	})
	return task
}

// TranslateCurrent translates the StructuredText into the selected Language, both read
// when the owner goroutine picks the request up.
func (s *Session) TranslateCurrent() *Task {
	task := newTask(StageTranslate)
	s.post(message{
		apply: func() {
			prompt := TranslationPrompt(s.state.StructuredText, s.state.Language)
			s.begin(task, func(ctx context.Context) (string, error) {
				return s.completer.Complete(ctx, prompt)
			}, func(result string) {
				s.state.TranslatedText = result
			})
		},
		reject: func() { task.finish("", ErrSessionClosed) },
	})
	return task
}

// SelectLanguage changes the translation target.
func (s *Session) SelectLanguage(lang Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, string(lang))
	}

	var err error
	done := make(chan struct{})
	s.post(message{
		apply: func() {
			defer close(done)
			if s.state.Language == lang {
				return
			}
			s.state.Language = lang
			s.publish()
		},
		reject: func() {
			err = ErrSessionClosed
			close(done)
		},
	})
	<-done
	return err
}

// Snapshot returns the most recently published State.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published.clone()
}

// Subscribe delivers the current State and then every change. Slow readers only see
// the latest State. The channel is closed by cancel or when the session stops.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	ch <- s.published.clone()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[id]; ok {
				close(ch)
				delete(s.subscribers, id)
			}
		})
	}
}

// submit schedules task to start on the owner goroutine.
func (s *Session) submit(task *Task, work func(context.Context) (string, error), apply func(string)) {
	s.post(message{
		apply:  func() { s.begin(task, work, apply) },
		reject: func() { task.finish("", ErrSessionClosed) },
	})
}

// begin starts work in the background. Runs on the owner goroutine.
func (s *Session) begin(task *Task, work func(context.Context) (string, error), apply func(string)) {
	if s.runCtx.Err() != nil {
		task.finish("", ErrSessionClosed)
		return
	}

	stage := task.stage
	tr := s.stages[stage]

	s.supersedeStage(stage)
	tr.inflight++
	tr.current = task
	gen := tr.gen

	task.stop = context.AfterFunc(s.runCtx, task.cancel)
	s.state.setInFlight(stage, true)
	s.publish()

	s.log.Debug().Str("stage", string(stage)).Int("inflight", tr.inflight).Msg("Stage started")

	go func() {
		text, err := work(task.ctx)
		s.post(message{
			apply:  func() { s.complete(task, gen, text, err, apply) },
			reject: func() { task.finish("", ErrSessionClosed) },
		})
	}()
}

// complete applies a finished call. Runs on the owner goroutine.
func (s *Session) complete(task *Task, gen uint64, text string, err error, apply func(string)) {
	stage := task.stage
	tr := s.stages[stage]

	tr.inflight--
	if tr.inflight == 0 {
		s.state.setInFlight(stage, false)
	}
	if tr.current == task {
		tr.current = nil
	}

	switch {
	case s.runCtx.Err() != nil:
		err = ErrSessionClosed
		text = ""
	case s.supersede && gen != tr.gen:
		s.log.Debug().Str("stage", string(stage)).Msg("Discarding superseded result")
		err = ErrSuperseded
		text = ""
	case err != nil:
		text = ""
		if errors.Is(err, context.Canceled) && task.ctx.Err() != nil {
			s.log.Info().Str("stage", string(stage)).Msg("Stage cancelled")
			break
		}
		s.log.Error().Err(err).Str("stage", string(stage)).Msg("Stage failed")
		if s.state.Errors == nil {
			s.state.Errors = make(map[Stage]string)
		}
		s.state.Errors[stage] = err.Error()
	default:
		apply(text)
		delete(s.state.Errors, stage)
		s.log.Debug().Str("stage", string(stage)).Int("chars", len(text)).Msg("Stage completed")
	}

	s.publish()
	task.finish(text, err)
}

// supersedeStage cancels the in-flight call of stage and marks its result stale.
// Without supersede it does nothing.
func (s *Session) supersedeStage(stage Stage) {
	if !s.supersede {
		return
	}
	tr := s.stages[stage]
	tr.gen++
	if tr.current != nil {
		tr.current.cancel()
		tr.current = nil
	}
}

// publish makes s.state visible to Snapshot and subscribers. Runs on the owner goroutine.
func (s *Session) publish() {
	snapshot := s.state.clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = snapshot
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot.clone():
			continue
		default:
		}
		// drop the stale value so the reader sees the latest one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot.clone():
		default:
		}
	}
}
