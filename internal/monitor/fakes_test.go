package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashish9731/email-responder/internal/archive"
	"github.com/ashish9731/email-responder/internal/errorlog"
	"github.com/ashish9731/email-responder/internal/mailbox"
)

type fakeMailbox struct {
	mu       sync.Mutex
	messages []mailbox.RawMessage
	read     map[string]bool
	sent     []mailbox.OutgoingMessage

	sendErr     error
	markReadErr error
	// listErrs are returned by successive ListUnread calls before listing works
	listErrs   []error
	refreshErr error
	refreshes  int

	// block, when set, holds ListUnread until it is closed
	block       chan struct{}
	entered     chan struct{}
	enteredOnce sync.Once

	// sendBlock, when set, holds Send until it is closed or ctx is done
	sendBlock       chan struct{}
	sendEntered     chan struct{}
	sendEnteredOnce sync.Once
}

func newFakeMailbox(msgs ...mailbox.RawMessage) *fakeMailbox {
	return &fakeMailbox{messages: msgs, read: map[string]bool{}}
}

func (f *fakeMailbox) Name() string { return "fake" }

func (f *fakeMailbox) ListUnread(ctx context.Context, max int) ([]mailbox.RawMessage, error) {
	if f.block != nil {
		if f.entered != nil {
			f.enteredOnce.Do(func() { close(f.entered) })
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return nil, err
	}
	var out []mailbox.RawMessage
	for _, m := range f.messages {
		if !f.read[m.ID] && len(out) < max {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMailbox) Send(ctx context.Context, msg mailbox.OutgoingMessage) error {
	if f.sendBlock != nil {
		f.sendEnteredOnce.Do(func() { close(f.sendEntered) })
		select {
		case <-f.sendBlock:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", mailbox.ErrUnavailable, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailbox) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.read[id] = true
	return nil
}

func (f *fakeMailbox) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeMailbox) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeMailbox) sentMessages() []mailbox.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailbox.OutgoingMessage(nil), f.sent...)
}

func (f *fakeMailbox) isRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read[id]
}

type fakeArchive struct {
	mu        sync.Mutex
	artifacts map[string]string
	ensured   int
	err       error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{artifacts: map[string]string{}}
}

func (f *fakeArchive) Name() string { return "fake" }

func (f *fakeArchive) EnsureFolders(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return f.err
}

func (f *fakeArchive) WriteCaseArtifact(ctx context.Context, caseNumber string, kind archive.Kind, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	key := fmt.Sprintf("%s/%s", kind, caseNumber)
	f.artifacts[key] = content
	return "https://archive.example/" + key, nil
}

type fakeIncidents struct {
	mu        sync.Mutex
	incidents []errorlog.Incident
}

func (f *fakeIncidents) Record(in errorlog.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, in)
	return nil
}

func (f *fakeIncidents) categories() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, in := range f.incidents {
		out = append(out, in.Category)
	}
	return out
}

func (f *fakeIncidents) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, in := range f.incidents {
		out = append(out, in.Message)
	}
	return out
}
