package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashish9731/email-responder/internal/archive"
	"github.com/ashish9731/email-responder/internal/errorlog"
	"github.com/ashish9731/email-responder/internal/generator"
	"github.com/ashish9731/email-responder/internal/mailbox"
	"github.com/ashish9731/email-responder/internal/metrics"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/status"
)

const checklistAttachmentName = "Engine_Inspection_Checklist.txt"

// cycleResult is what a cycle reports into the system status
type cycleResult struct {
	processed      int
	mailboxOK      bool
	mailboxChecked bool
}

// RunCycle runs one poll cycle: open cases for matching unread mail, reply,
// then send due follow-ups. It returns ErrCycleInProgress without doing
// anything when another cycle holds the lock.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	if !c.cycleMu.TryLock() {
		c.logger.Info("poll cycle skipped, previous cycle still running")
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return ErrCycleInProgress
	}
	defer c.cycleMu.Unlock()

	start := time.Now()
	c.logger.Debug("poll cycle started")

	res, err := c.runCycle(ctx)
	if serr := c.updateStatus(ctx, res, err); serr != nil && err == nil {
		err = serr
	}

	pollAt := c.now()
	c.mu.Lock()
	c.lastPollAt = &pollAt
	c.lastError = describe(err)
	c.mu.Unlock()

	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	c.logger.Debug("poll cycle finished", "processed", res.processed, "duration", time.Since(start))
	return nil
}

func (c *Coordinator) runCycle(ctx context.Context) (cycleResult, error) {
	var res cycleResult

	c.ensureFolders(ctx)

	keywords, err := c.store.GetActiveKeywordTexts(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load active keywords: %w", err)
	}

	var messages []mailbox.RawMessage
	err = c.withAuthRetry(ctx, func(ctx context.Context) error {
		var lerr error
		messages, lerr = c.mailbox.ListUnread(ctx, c.cfg.BatchSize)
		return lerr
	})
	res.mailboxChecked = true
	if err != nil {
		cat := Categorize(err)
		c.logger.Warn("failed to list unread messages", "category", cat, "error", err)
		c.recordIncident(errorlog.Incident{Category: string(cat), Message: cat.Describe()})
		return res, fmt.Errorf("failed to list unread messages: %w", err)
	}
	res.mailboxOK = true

	if len(keywords) > 0 && len(messages) > 0 {
		answered, err := c.answeredMessages(ctx)
		if err != nil {
			return res, err
		}

		for _, msg := range messages {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			matched := MatchKeywords(msg.Subject, msg.Body, keywords)
			if len(matched) == 0 {
				continue
			}

			if number, ok := answered[msg.ID]; ok {
				c.logger.Info("message already answered, marking read",
					"message_id", msg.ID,
					"case_number", number)
				c.markRead(ctx, msg.ID, number)
				continue
			}

			res.processed++
			if err := c.respondDetached(ctx, msg, matched); err != nil {
				if errors.Is(err, mailbox.ErrNotConnected) {
					res.mailboxOK = false
					return res, err
				}
				c.logger.Error("failed to respond to message",
					"message_id", msg.ID,
					"error", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := c.sendFollowUps(ctx); err != nil {
		if errors.Is(err, mailbox.ErrNotConnected) {
			res.mailboxOK = false
		}
		return res, err
	}
	return res, nil
}

// answeredMessages maps source message ids to the case that already replied
// to them. Cases that ended in error do not count, so their message is
// answered again.
func (c *Coordinator) answeredMessages(ctx context.Context) (map[string]string, error) {
	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	answered := make(map[string]string)
	for _, cs := range cases {
		if cs.SourceMessageID == "" {
			continue
		}
		switch cs.Status {
		case models.StatusResponded, models.StatusFollowUpSent, models.StatusCompleted:
			answered[cs.SourceMessageID] = cs.CaseNumber
		}
	}
	return answered, nil
}

// respondDetached runs respond so that a Stop arriving mid-message cannot
// cut a reply in half. Cancellation is honoured between messages.
func (c *Coordinator) respondDetached(ctx context.Context, msg mailbox.RawMessage, matched []string) error {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.MessageTimeout)
	defer cancel()
	return c.respond(mctx, msg, matched)
}

// respond opens a case for msg and replies to it. A send failure moves the
// case to error and leaves the message unread for the next cycle.
func (c *Coordinator) respond(ctx context.Context, msg mailbox.RawMessage, matched []string) error {
	cs, err := c.store.CreateCase(ctx, models.NewCase{
		SourceMessageID: msg.ID,
		SenderEmail:     msg.SenderEmail,
		SenderName:      msg.SenderName,
		Subject:         msg.Subject,
		OriginalBody:    msg.Body,
		Keywords:        matched,
	})
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	metrics.CasesOpened.Inc()

	log := c.logger.With("case_number", cs.CaseNumber, "message_id", msg.ID)
	log.Info("case opened", "sender", msg.SenderEmail, "keywords", matched)

	facts := generator.Facts{
		Subject:    cs.Subject,
		Keywords:   cs.Keywords,
		Body:       cs.OriginalBody,
		CaseNumber: cs.CaseNumber,
		Sender:     cs.SenderEmail,
	}

	checklist := c.generator.DraftChecklist(ctx, facts)
	attachmentURL, _ := c.archiveArtifact(ctx, cs.CaseNumber, archive.KindChecklist, checklist)

	reply := c.generator.DraftReply(ctx, facts)
	out := mailbox.OutgoingMessage{
		To:      cs.SenderEmail,
		Subject: fmt.Sprintf("Re: %s - Case #%s", cs.Subject, cs.CaseNumber),
		Body:    reply,
		Attachment: &mailbox.Attachment{
			Name:        checklistAttachmentName,
			ContentType: "text/plain",
			Content:     []byte(checklist),
		},
	}
	if err := c.withAuthRetry(ctx, func(ctx context.Context) error { return c.mailbox.Send(ctx, out) }); err != nil {
		metrics.SendFailures.WithLabelValues("reply").Inc()
		c.recordIncident(errorlog.Incident{
			CaseNumber: cs.CaseNumber,
			MessageID:  msg.ID,
			Category:   string(CategorySendFailure),
			Message:    CategorySendFailure.Describe(),
		})
		c.failCase(ctx, cs, CategorySendFailure, err)
		return fmt.Errorf("failed to send reply for %s: %w", cs.CaseNumber, err)
	}
	metrics.RepliesSent.Inc()
	log.Info("reply sent", "to", cs.SenderEmail)

	c.archiveArtifact(ctx, cs.CaseNumber, archive.KindResponse, reply)

	update := models.CaseUpdate{
		Status:       models.Ptr(models.StatusResponded),
		ResponseBody: &reply,
		FollowUpAt:   models.Ptr(c.now().Add(models.FollowUpDelay)),
	}
	if attachmentURL != "" {
		update.AttachmentURL = &attachmentURL
	}
	if _, err := c.store.UpdateCase(ctx, cs.ID, update); err != nil {
		// the reply went out; the message is still marked read so it is not answered twice
		c.failCase(ctx, cs, Categorize(err), err)
		c.markRead(ctx, msg.ID, cs.CaseNumber)
		return fmt.Errorf("failed to record reply for %s: %w", cs.CaseNumber, err)
	}

	c.markRead(ctx, msg.ID, cs.CaseNumber)
	return nil
}

// sendFollowUps sends every due follow-up, oldest case first. A failed send
// leaves the case responded so the next cycle retries it.
func (c *Coordinator) sendFollowUps(ctx context.Context) error {
	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cases for follow-up: %w", err)
	}

	now := c.now()
	for i := len(cases) - 1; i >= 0; i-- {
		cs := cases[i]
		if !cs.FollowUpDue(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.followUpDetached(ctx, cs); err != nil {
			return err
		}
	}
	return nil
}

// followUpDetached sends one follow-up outside the cycle's cancellation, as
// respondDetached does for replies
func (c *Coordinator) followUpDetached(ctx context.Context, cs models.Case) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.MessageTimeout)
	defer cancel()
	return c.followUp(fctx, cs)
}

// followUp drafts and sends the follow-up for cs. Only a disconnected mailbox
// is returned as an error; other failures are recorded and retried next cycle.
func (c *Coordinator) followUp(ctx context.Context, cs models.Case) error {
	log := c.logger.With("case_number", cs.CaseNumber)
	body := c.generator.DraftFollowUp(ctx, generator.Facts{
		Subject:    cs.Subject,
		Keywords:   cs.Keywords,
		Body:       cs.OriginalBody,
		CaseNumber: cs.CaseNumber,
		Sender:     cs.SenderEmail,
	})
	out := mailbox.OutgoingMessage{
		To:      cs.SenderEmail,
		Subject: fmt.Sprintf("Follow-up: %s - Case #%s", cs.Subject, cs.CaseNumber),
		Body:    body,
	}

	if err := c.withAuthRetry(ctx, func(ctx context.Context) error { return c.mailbox.Send(ctx, out) }); err != nil {
		metrics.SendFailures.WithLabelValues("follow_up").Inc()
		c.recordIncident(errorlog.Incident{
			CaseNumber: cs.CaseNumber,
			Category:   string(CategorySendFailure),
			Message:    CategorySendFailure.Describe(),
		})
		if errors.Is(err, mailbox.ErrNotConnected) {
			return fmt.Errorf("failed to send follow-up for %s: %w", cs.CaseNumber, err)
		}
		log.Warn("follow-up send failed, will retry next cycle", "error", err)
		return nil
	}
	metrics.FollowUpsSent.Inc()

	if _, err := c.store.UpdateCase(ctx, cs.ID, models.CaseUpdate{
		Status:       models.Ptr(models.StatusFollowUpSent),
		FollowUpSent: models.Ptr(true),
	}); err != nil {
		// the follow-up went out; parking the case in error stops a second one
		log.Error("failed to record follow-up", "error", err)
		c.failCase(ctx, &cs, Categorize(err), err)
		return nil
	}
	log.Info("follow-up sent", "to", cs.SenderEmail)
	return nil
}

// withAuthRetry runs op and, when the mailbox reports expired credentials,
// refreshes them and runs op once more. A failed refresh is reported as
// not connected.
func (c *Coordinator) withAuthRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if !errors.Is(err, mailbox.ErrAuthExpired) {
		return err
	}

	c.logger.Info("mailbox credentials expired, refreshing", "mailbox", c.mailbox.Name())
	if rerr := c.mailbox.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%w: credential refresh failed: %v", mailbox.ErrNotConnected, rerr)
	}
	return op(ctx)
}

func (c *Coordinator) markRead(ctx context.Context, messageID, caseNumber string) {
	err := c.withAuthRetry(ctx, func(ctx context.Context) error { return c.mailbox.MarkRead(ctx, messageID) })
	if err != nil {
		c.logger.Warn("failed to mark message read",
			"message_id", messageID,
			"case_number", caseNumber,
			"error", err)
	}
}

// failCase moves a case to error. The case keeps the operator message for
// cat; the cause goes to the log only. Storage trouble here is only logged.
func (c *Coordinator) failCase(ctx context.Context, cs *models.Case, cat Category, cause error) {
	msg := cat.Describe()
	if _, err := c.store.UpdateCase(context.WithoutCancel(ctx), cs.ID, models.CaseUpdate{
		Status:    models.Ptr(models.StatusError),
		LastError: &msg,
	}); err != nil {
		c.logger.Error("failed to move case to error",
			"case_number", cs.CaseNumber,
			"error", err)
		return
	}
	c.logger.Warn("case moved to error", "case_number", cs.CaseNumber, "category", cat, "cause", cause)
}

// archiveArtifact stores content and returns its URL. Failures are logged and
// yield an empty URL.
func (c *Coordinator) archiveArtifact(ctx context.Context, caseNumber string, kind archive.Kind, content string) (string, bool) {
	url, err := c.archive.WriteCaseArtifact(ctx, caseNumber, kind, content)
	if err != nil {
		metrics.ArchiveFailures.WithLabelValues(string(kind)).Inc()
		c.logger.Warn("failed to archive artifact",
			"case_number", caseNumber,
			"kind", kind,
			"error", err)
		c.recordIncident(errorlog.Incident{
			CaseNumber: caseNumber,
			Category:   string(CategoryArchiveFailure),
			Message:    CategoryArchiveFailure.Describe(),
		})
		return "", false
	}
	return url, true
}

// ensureFolders prepares the archive tree until it succeeds once
func (c *Coordinator) ensureFolders(ctx context.Context) {
	c.mu.Lock()
	ready := c.foldersReady
	c.mu.Unlock()
	if ready {
		return
	}

	ok := true
	if err := c.archive.EnsureFolders(ctx); err != nil {
		ok = false
		c.logger.Warn("failed to prepare archive folders", "archive", c.archive.Name(), "error", err)
	}

	c.mu.Lock()
	c.foldersReady = ok
	c.mu.Unlock()

	if _, err := c.store.UpdateSystemStatus(ctx, models.StatusUpdate{OneDriveConnected: &ok}); err != nil {
		c.logger.Warn("failed to record archive state", "error", err)
	}
}

// updateStatus writes the cycle outcome. It runs even when the cycle context
// was canceled.
func (c *Coordinator) updateStatus(ctx context.Context, res cycleResult, cycleErr error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
	defer cancel()

	now := c.now()
	lastError := describe(cycleErr)
	u := models.StatusUpdate{
		LastEmailCheck:       &now,
		EmailsProcessedDelta: res.processed,
		LastError:            &lastError,
	}
	if res.mailboxChecked {
		u.OutlookConnected = models.Ptr(res.mailboxOK)
	}

	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return fmt.Errorf("failed to update system status: %w", err)
	}
	stats := status.ComputeStats(cases, now)
	u.ActiveCases = &stats.Active
	u.ResponseRate = &stats.ResponseRate

	if _, err := c.store.UpdateSystemStatus(ctx, u); err != nil {
		return fmt.Errorf("failed to update system status: %w", err)
	}
	return nil
}

// refreshCaseFigures recomputes the case counters kept in the system status
func (c *Coordinator) refreshCaseFigures(ctx context.Context) error {
	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return err
	}
	stats := status.ComputeStats(cases, c.now())
	_, err = c.store.UpdateSystemStatus(ctx, models.StatusUpdate{
		ActiveCases:  &stats.Active,
		ResponseRate: &stats.ResponseRate,
	})
	return err
}
