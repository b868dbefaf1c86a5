package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/channels"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/template"
)

// fakeChannel records sends and fails on demand
type fakeChannel struct {
	mu    sync.Mutex
	sends map[string]int
	fail  func(recipient string) error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{sends: make(map[string]int)}
}

func (c *fakeChannel) Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		if err := c.fail(recipient); err != nil {
			return err
		}
	}
	c.sends[recipient]++
	return nil
}

func (c *fakeChannel) sendCount(recipient string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends[recipient]
}

func testWorkerConfig(poolSize int) config.WorkerConfig {
	return config.WorkerConfig{
		PoolSize:     poolSize,
		PollInterval: 10 * time.Millisecond,
		SendTimeout:  time.Second,
		ReclaimEvery: time.Hour,
	}
}

func seedTemplates() *template.MemoryStore {
	templates := template.NewMemoryStore()
	templates.Put(&template.Template{
		Name:      "order_confirmation",
		Subject:   "Order {{order_number}} confirmed",
		TextBody:  "Total: {{total}}",
		Variables: []string{"order_number", "total"},
		Active:    true,
	})
	return templates
}

// waitForTerminal polls until the job leaves the pending/sending states
func waitForTerminal(t *testing.T, queue jobqueue.Store, jobID string) *jobqueue.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := queue.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}

func startPool(t *testing.T, queue jobqueue.Store, templates template.Store, channel channels.SendChannel, poolSize int) {
	t.Helper()
	pool := NewPool(queue, templates, channel, nil, zap.NewNop(), testWorkerConfig(poolSize))
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
}

func TestPoolDeliversJob(t *testing.T) {
	queue := jobqueue.NewMemoryStore(time.Minute)
	channel := newFakeChannel()
	startPool(t, queue, seedTemplates(), channel, 1)

	id, err := queue.Enqueue(context.Background(), &jobqueue.Job{
		TemplateName: "order_confirmation",
		Recipient:    "client@example.com",
		Variables:    map[string]string{"order_number": "DC-1", "total": "42.00"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job := waitForTerminal(t, queue, id)
	if job.Status != jobqueue.StatusSent {
		t.Fatalf("status = %s (%s), want sent", job.Status, job.ErrorMessage)
	}
	if job.SentAt == nil {
		t.Error("SentAt not recorded")
	}
	if n := channel.sendCount("client@example.com"); n != 1 {
		t.Errorf("send count = %d, want 1", n)
	}
}

func TestInactiveTemplateFailsPermanently(t *testing.T) {
	queue := jobqueue.NewMemoryStore(time.Minute)
	templates := template.NewMemoryStore()
	templates.Put(&template.Template{Name: "retired_promo", Subject: "Hi", Active: false})
	channel := newFakeChannel()
	startPool(t, queue, templates, channel, 1)

	id, err := queue.Enqueue(context.Background(), &jobqueue.Job{
		TemplateName: "retired_promo",
		Recipient:    "client@example.com",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job := waitForTerminal(t, queue, id)
	if job.Status != jobqueue.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
	if job.ErrorMessage != "template inactive" {
		t.Errorf("error message = %q, want %q", job.ErrorMessage, "template inactive")
	}
	if n := channel.sendCount("client@example.com"); n != 0 {
		t.Errorf("send attempted %d times for an unrenderable job", n)
	}
}

func TestMissingVariableFailsPermanently(t *testing.T) {
	queue := jobqueue.NewMemoryStore(time.Minute)
	channel := newFakeChannel()
	startPool(t, queue, seedTemplates(), channel, 1)

	id, err := queue.Enqueue(context.Background(), &jobqueue.Job{
		TemplateName: "order_confirmation",
		Recipient:    "client@example.com",
		Variables:    map[string]string{"order_number": "DC-1"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job := waitForTerminal(t, queue, id)
	if job.Status != jobqueue.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
	if n := channel.sendCount("client@example.com"); n != 0 {
		t.Errorf("send attempted %d times for an unrenderable job", n)
	}
}

func TestPermanentSendErrorFailsJob(t *testing.T) {
	queue := jobqueue.NewMemoryStore(time.Minute)
	channel := newFakeChannel()
	channel.fail = func(string) error {
		return &channels.PermanentError{Err: errors.New("recipient rejected")}
	}
	startPool(t, queue, seedTemplates(), channel, 1)

	id, err := queue.Enqueue(context.Background(), &jobqueue.Job{
		TemplateName: "order_confirmation",
		Recipient:    "bounce@example.com",
		Variables:    map[string]string{"order_number": "DC-1", "total": "42.00"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job := waitForTerminal(t, queue, id)
	if job.Status != jobqueue.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
}

func TestTransientSendErrorExhaustsRetries(t *testing.T) {
	queue := jobqueue.NewMemoryStore(time.Minute)
	channel := newFakeChannel()
	channel.fail = func(string) error {
		return &channels.TransientError{Err: errors.New("provider 503")}
	}
	startPool(t, queue, seedTemplates(), channel, 1)

	id, err := queue.Enqueue(context.Background(), &jobqueue.Job{
		TemplateName: "order_confirmation",
		Recipient:    "client@example.com",
		Variables:    map[string]string{"order_number": "DC-1", "total": "42.00"},
		MaxAttempts:  1,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job := waitForTerminal(t, queue, id)
	if job.Status != jobqueue.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
}

func TestPoolSendsEachJobOnce(t *testing.T) {
	queue := jobqueue.NewMemoryStore(time.Minute)
	channel := newFakeChannel()
	startPool(t, queue, seedTemplates(), channel, 4)

	recipients := []string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com",
		"e@example.com", "f@example.com", "g@example.com", "h@example.com",
	}
	ids := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		id, err := queue.Enqueue(context.Background(), &jobqueue.Job{
			TemplateName: "order_confirmation",
			Recipient:    recipient,
			Variables:    map[string]string{"order_number": "DC-1", "total": "42.00"},
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		job := waitForTerminal(t, queue, id)
		if job.Status != jobqueue.StatusSent {
			t.Errorf("job %s status = %s, want sent", id, job.Status)
		}
	}
	for _, recipient := range recipients {
		if n := channel.sendCount(recipient); n != 1 {
			t.Errorf("%s sent %d times, want 1", recipient, n)
		}
	}
}
