package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish9731/email-responder/internal/generator"
	"github.com/ashish9731/email-responder/internal/mailbox"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/scheduler"
	"github.com/ashish9731/email-responder/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var engineMail = mailbox.RawMessage{
	ID:          "msg-1",
	SenderEmail: "captain@example.com",
	SenderName:  "Captain",
	Subject:     "Engine Failure at sea",
	Body:        "The main engine stopped an hour ago.",
	ReceivedAt:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
}

type harness struct {
	c         *Coordinator
	store     storage.Store
	mailbox   *fakeMailbox
	archive   *fakeArchive
	incidents *fakeIncidents
	clock     time.Time
}

func newHarness(t *testing.T, gen generator.Generator, msgs ...mailbox.RawMessage) *harness {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	for _, k := range []string{"engine failure", "engine fire"} {
		_, err := store.AddKeyword(ctx, k, true)
		require.NoError(t, err)
	}
	_, err := store.SaveConfiguration(ctx, models.Configuration{Email: "ops@example.com", IsActive: true})
	require.NoError(t, err)

	if gen == nil {
		gen = generator.Fallback{}
	}
	h := &harness{
		store:     store,
		mailbox:   newFakeMailbox(msgs...),
		archive:   newFakeArchive(),
		incidents: &fakeIncidents{},
		clock:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.c = New(Config{
		BatchSize: 10,
		Frequency: scheduler.Frequency{Every: "second", Amount: 1},
	}, Deps{
		Store:     store,
		Mailbox:   h.mailbox,
		Archive:   h.archive,
		Generator: gen,
		Incidents: h.incidents,
	}, testLogger())
	h.c.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) cases(t *testing.T) []models.Case {
	t.Helper()
	cases, err := h.store.ListCases(context.Background())
	require.NoError(t, err)
	return cases
}

func TestMatchAndRespond(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()

	require.NoError(t, h.c.RunCycle(ctx))

	cases := h.cases(t)
	require.Len(t, cases, 1)
	cs := cases[0]
	assert.Equal(t, models.StatusResponded, cs.Status)
	assert.Equal(t, "msg-1", cs.SourceMessageID)
	assert.Equal(t, []string{"engine failure"}, cs.Keywords)
	require.NotNil(t, cs.ResponseBody)
	assert.Equal(t, generator.FallbackReply(cs.CaseNumber), *cs.ResponseBody)
	require.NotNil(t, cs.AttachmentURL)
	assert.Equal(t, "https://archive.example/checklist/"+cs.CaseNumber, *cs.AttachmentURL)
	require.NotNil(t, cs.FollowUpAt)
	assert.WithinDuration(t, h.clock.Add(2*time.Hour), *cs.FollowUpAt, time.Second)
	assert.False(t, cs.FollowUpSent)

	sent := h.mailbox.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "captain@example.com", sent[0].To)
	assert.Equal(t, fmt.Sprintf("Re: Engine Failure at sea - Case #%s", cs.CaseNumber), sent[0].Subject)
	require.NotNil(t, sent[0].Attachment)
	assert.Equal(t, generator.FallbackChecklist(cs.CaseNumber), string(sent[0].Attachment.Content))

	assert.True(t, h.mailbox.isRead("msg-1"))
	assert.Contains(t, h.archive.artifacts, "response/"+cs.CaseNumber)

	sys, err := h.store.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sys.EmailsProcessed)
	assert.Equal(t, 1, sys.ActiveCases)
	assert.Equal(t, "100.0%", sys.ResponseRate)
	assert.True(t, sys.OutlookConnected)
	assert.True(t, sys.OneDriveConnected)
	require.NotNil(t, sys.LastEmailCheck)

	st := h.c.Status()
	require.NotNil(t, st.LastPollAt)
	assert.Empty(t, st.LastError)
}

func TestMultipleKeywordsAreAllRecorded(t *testing.T) {
	msg := engineMail
	msg.Body = "There was an ENGINE FIRE right after the engine failure."
	h := newHarness(t, nil, msg)

	require.NoError(t, h.c.RunCycle(context.Background()))

	cases := h.cases(t)
	require.Len(t, cases, 1)
	assert.ElementsMatch(t, []string{"engine failure", "engine fire"}, cases[0].Keywords)
}

func TestKeywordsDifferingByCaseAreBothRecorded(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()
	for _, k := range []string{"Engine", "engine"} {
		_, err := h.store.AddKeyword(ctx, k, true)
		require.NoError(t, err)
	}

	require.NoError(t, h.c.RunCycle(ctx))

	cases := h.cases(t)
	require.Len(t, cases, 1)
	assert.Subset(t, cases[0].Keywords, []string{"Engine", "engine"})
}

func TestNoMatchLeavesMessageUntouched(t *testing.T) {
	msg := mailbox.RawMessage{ID: "msg-2", SenderEmail: "a@example.com", Subject: "Lunch", Body: "Pizza on deck?"}
	h := newHarness(t, nil, msg)

	require.NoError(t, h.c.RunCycle(context.Background()))

	assert.Empty(t, h.cases(t))
	assert.Empty(t, h.mailbox.sentMessages())
	assert.False(t, h.mailbox.isRead("msg-2"))
}

func TestInactiveKeywordsDoNotMatch(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()
	kw, err := h.store.GetKeywordByText(ctx, "engine failure")
	require.NoError(t, err)
	_, err = h.store.UpdateKeyword(ctx, kw.ID, false)
	require.NoError(t, err)

	require.NoError(t, h.c.RunCycle(ctx))
	assert.Empty(t, h.cases(t))
}

func TestFollowUpFiresOnce(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()

	require.NoError(t, h.c.RunCycle(ctx))
	require.Len(t, h.mailbox.sentMessages(), 1)

	// not due yet
	h.clock = h.clock.Add(time.Hour)
	require.NoError(t, h.c.RunCycle(ctx))
	require.Len(t, h.mailbox.sentMessages(), 1)

	h.clock = h.clock.Add(time.Hour + time.Minute)
	require.NoError(t, h.c.RunCycle(ctx))

	sent := h.mailbox.sentMessages()
	require.Len(t, sent, 2)
	cs := h.cases(t)[0]
	assert.Equal(t, fmt.Sprintf("Follow-up: Engine Failure at sea - Case #%s", cs.CaseNumber), sent[1].Subject)
	assert.Equal(t, generator.FallbackFollowUp(cs.CaseNumber), sent[1].Body)
	assert.Nil(t, sent[1].Attachment)
	assert.Equal(t, models.StatusFollowUpSent, cs.Status)
	assert.True(t, cs.FollowUpSent)

	h.clock = h.clock.Add(5 * time.Hour)
	require.NoError(t, h.c.RunCycle(ctx))
	assert.Len(t, h.mailbox.sentMessages(), 2, "no second follow-up")
}

func TestFollowUpSendFailureKeepsCaseResponded(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()
	require.NoError(t, h.c.RunCycle(ctx))

	h.clock = h.clock.Add(3 * time.Hour)
	h.mailbox.setSendErr(fmt.Errorf("%w: smtp 451", mailbox.ErrUnavailable))
	require.NoError(t, h.c.RunCycle(ctx))

	cs := h.cases(t)[0]
	assert.Equal(t, models.StatusResponded, cs.Status)
	assert.False(t, cs.FollowUpSent)
	assert.Contains(t, h.incidents.categories(), string(CategorySendFailure))

	h.mailbox.setSendErr(nil)
	require.NoError(t, h.c.RunCycle(ctx))
	cs = h.cases(t)[0]
	assert.Equal(t, models.StatusFollowUpSent, cs.Status)
	assert.Len(t, h.mailbox.sentMessages(), 2)
}

func TestGenerationOutageUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	gen := generator.NewOpenAI(generator.OpenAIConfig{
		APIKey:        "sk-test",
		BaseURL:       srv.URL,
		Timeout:       time.Second,
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
	}, testLogger())

	h := newHarness(t, gen, engineMail)
	require.NoError(t, h.c.RunCycle(context.Background()))

	cs := h.cases(t)[0]
	assert.Equal(t, models.StatusResponded, cs.Status)
	require.NotNil(t, cs.ResponseBody)
	assert.Equal(t, generator.FallbackReply(cs.CaseNumber), *cs.ResponseBody)
	assert.Equal(t, generator.FallbackChecklist(cs.CaseNumber), h.archive.artifacts["checklist/"+cs.CaseNumber])
}

func TestSendOutageRetriesWithNewCase(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()

	h.mailbox.setSendErr(fmt.Errorf("%w: smtp down", mailbox.ErrUnavailable))
	require.NoError(t, h.c.RunCycle(ctx))

	cases := h.cases(t)
	require.Len(t, cases, 1)
	assert.Equal(t, models.StatusError, cases[0].Status)
	assert.Equal(t, CategorySendFailure.Describe(), cases[0].LastError)
	assert.False(t, h.mailbox.isRead("msg-1"))
	assert.Contains(t, h.incidents.categories(), string(CategorySendFailure))

	h.mailbox.setSendErr(nil)
	require.NoError(t, h.c.RunCycle(ctx))

	cases = h.cases(t)
	require.Len(t, cases, 2)
	assert.Equal(t, models.StatusResponded, cases[0].Status)
	assert.Equal(t, models.StatusError, cases[1].Status)
	assert.NotEqual(t, cases[0].CaseNumber, cases[1].CaseNumber)
	assert.True(t, h.mailbox.isRead("msg-1"))

	sys, err := h.store.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sys.EmailsProcessed)
	assert.Equal(t, "50.0%", sys.ResponseRate)
}

func TestAnsweredMessageIsNotAnsweredTwice(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()

	h.mailbox.markReadErr = errors.New("flag store failed")
	require.NoError(t, h.c.RunCycle(ctx))
	assert.False(t, h.mailbox.isRead("msg-1"))

	h.mailbox.markReadErr = nil
	require.NoError(t, h.c.RunCycle(ctx))

	assert.Len(t, h.cases(t), 1)
	assert.Len(t, h.mailbox.sentMessages(), 1)
	assert.True(t, h.mailbox.isRead("msg-1"))
}

func TestArchiveFailureStillReplies(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	h.archive.err = errors.New("drive quota exceeded")

	require.NoError(t, h.c.RunCycle(context.Background()))

	cs := h.cases(t)[0]
	assert.Equal(t, models.StatusResponded, cs.Status)
	assert.Nil(t, cs.AttachmentURL)
	require.Len(t, h.mailbox.sentMessages(), 1)
	assert.NotNil(t, h.mailbox.sentMessages()[0].Attachment)
	assert.Contains(t, h.incidents.categories(), string(CategoryArchiveFailure))

	sys, err := h.store.GetSystemStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, sys.OneDriveConnected)
}

func TestAuthExpiredRefreshesAndRetries(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	h.mailbox.listErrs = []error{fmt.Errorf("list: %w", mailbox.ErrAuthExpired)}

	require.NoError(t, h.c.RunCycle(context.Background()))

	assert.Equal(t, 1, h.mailbox.refreshes)
	assert.Len(t, h.cases(t), 1)
}

func TestFailedRefreshIsNotConnected(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()
	h.mailbox.listErrs = []error{fmt.Errorf("list: %w", mailbox.ErrAuthExpired)}
	h.mailbox.refreshErr = errors.New("refresh token revoked")

	err := h.c.RunCycle(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, mailbox.ErrNotConnected)
	assert.Equal(t, CategoryNotConnected, Categorize(err))
	assert.Empty(t, h.cases(t))

	sys, serr := h.store.GetSystemStatus(ctx)
	require.NoError(t, serr)
	assert.False(t, sys.OutlookConnected)
	assert.Equal(t, CategoryNotConnected.Describe(), sys.LastError)
	assert.Equal(t, CategoryNotConnected.Describe(), h.c.Status().LastError)
	for _, msg := range h.incidents.messages() {
		assert.NotContains(t, msg, "refresh token revoked")
	}
}

func TestFailureDetailStaysOutOfOperatorFields(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()
	detail := "smtp 550 5.7.1 relay denied for host mx.internal.corp:2525"
	h.mailbox.setSendErr(fmt.Errorf("%w: %s", mailbox.ErrRejected, detail))

	require.NoError(t, h.c.RunCycle(ctx))

	cs := h.cases(t)[0]
	assert.Equal(t, models.StatusError, cs.Status)
	assert.NotContains(t, cs.LastError, "relay denied")
	require.NotEmpty(t, h.incidents.messages())
	for _, msg := range h.incidents.messages() {
		assert.NotContains(t, msg, "mx.internal.corp")
	}

	h.mailbox.listErrs = []error{fmt.Errorf("%w: dial tcp 10.0.0.7:993: connection refused", mailbox.ErrUnavailable)}
	require.Error(t, h.c.RunCycle(ctx))

	sys, err := h.store.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryUnavailable.Describe(), sys.LastError)
	assert.Equal(t, CategoryUnavailable.Describe(), h.c.Status().LastError)
}

func TestSingleActiveCycle(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	h.mailbox.block = make(chan struct{})
	h.mailbox.entered = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var first error
	go func() {
		defer wg.Done()
		first = h.c.RunCycle(context.Background())
	}()

	<-h.mailbox.entered
	err := h.c.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(h.mailbox.block)
	wg.Wait()
	require.NoError(t, first)
	assert.Len(t, h.cases(t), 1)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.c.Start(ctx))
	assert.ErrorIs(t, h.c.Start(ctx), ErrAlreadyRunning)
	assert.True(t, h.c.Status().IsRunning)
	assert.True(t, h.c.sched.IsScheduled(pollJobName))

	sys, err := h.store.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.True(t, sys.EmailMonitorActive)

	require.NoError(t, h.c.Stop(ctx))
	assert.False(t, h.c.Status().IsRunning)
	assert.False(t, h.c.sched.IsScheduled(pollJobName))

	sys, err = h.store.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.False(t, sys.EmailMonitorActive)

	// restart after stop works, stop twice is harmless
	require.NoError(t, h.c.Start(ctx))
	require.NoError(t, h.c.Stop(ctx))
	require.NoError(t, h.c.Stop(ctx))
	h.c.sched.Stop()
}

func TestStartRequiresActiveConfiguration(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.store.SaveConfiguration(ctx, models.Configuration{Email: "ops@example.com", IsActive: false})
	require.NoError(t, err)

	err = h.c.Start(ctx)
	require.ErrorIs(t, err, ErrNoConfiguration)
	assert.Equal(t, CategoryNotConnected, Categorize(err))
	assert.False(t, h.c.Status().IsRunning)
	assert.False(t, h.c.sched.IsScheduled(pollJobName))
}

func TestStopCancelsInflightCycle(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	h.c.cfg.StartNow = true
	h.mailbox.block = make(chan struct{})
	h.mailbox.entered = make(chan struct{})
	ctx := context.Background()

	require.NoError(t, h.c.Start(ctx))
	select {
	case <-h.mailbox.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("poll cycle did not start")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, h.c.Stop(stopCtx))
	h.c.sched.Stop()

	assert.Empty(t, h.cases(t))
	assert.Equal(t, CategoryCanceled.Describe(), h.c.Status().LastError)
}

func TestStopFinishesMessageInFlight(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	h.c.cfg.StartNow = true
	h.mailbox.sendBlock = make(chan struct{})
	h.mailbox.sendEntered = make(chan struct{})
	ctx := context.Background()

	require.NoError(t, h.c.Start(ctx))
	select {
	case <-h.mailbox.sendEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("reply was not sent")
	}

	stopped := make(chan error, 1)
	go func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		stopped <- h.c.Stop(stopCtx)
	}()
	// the cycle context is canceled once the monitor reports stopped
	require.Eventually(t, func() bool { return !h.c.Status().IsRunning }, 5*time.Second, 10*time.Millisecond)
	close(h.mailbox.sendBlock)
	require.NoError(t, <-stopped)
	h.c.sched.Stop()

	cases := h.cases(t)
	require.Len(t, cases, 1)
	assert.Equal(t, models.StatusResponded, cases[0].Status)
	assert.True(t, h.mailbox.isRead("msg-1"))
	assert.Len(t, h.mailbox.sentMessages(), 1)
}

func TestCompleteCaseIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, engineMail)
	ctx := context.Background()
	require.NoError(t, h.c.RunCycle(ctx))
	id := h.cases(t)[0].ID

	cs, err := h.c.CompleteCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, cs.Status)

	cs, err = h.c.CompleteCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, cs.Status)

	_, err = h.c.CompleteCase(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	sys, err := h.store.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sys.ActiveCases)
}

func TestSetGateways(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	next := newFakeMailbox(engineMail)
	require.NoError(t, h.c.SetGateways(Gateways{Mailbox: next, Archive: h.archive, Generator: generator.Fallback{}}))
	require.NoError(t, h.c.RunCycle(ctx))
	assert.Len(t, next.sentMessages(), 1)
	assert.Empty(t, h.mailbox.sentMessages())

	require.NoError(t, h.c.Start(ctx))
	assert.ErrorIs(t, h.c.SetGateways(Gateways{Mailbox: h.mailbox, Archive: h.archive, Generator: generator.Fallback{}}), ErrAlreadyRunning)
	require.NoError(t, h.c.Stop(ctx))
	h.c.sched.Stop()
}
