package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/queue"
	"basegraph.app/copilot-survey/internal/service"
	"basegraph.app/copilot-survey/internal/survey"
	"basegraph.app/copilot-survey/internal/worker"
)

type fakeConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	readErrs []error
	reads    int
	acked    []string
	requeued []string
	dlq      []string
}

func (c *fakeConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if len(c.readErrs) > 0 {
		err := c.readErrs[0]
		c.readErrs = c.readErrs[1:]
		return nil, err
	}
	if len(c.batches) > 0 {
		batch := c.batches[0]
		c.batches = c.batches[1:]
		return batch, nil
	}
	return nil, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, msg queue.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, msg.ID)
	return nil
}

func (c *fakeConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requeued = append(c.requeued, msg.ID)
	return nil
}

func (c *fakeConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dlq = append(c.dlq, msg.ID)
	return nil
}

func (c *fakeConsumer) snapshot() (reads int, acked, requeued, dlq []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads, append([]string(nil), c.acked...), append([]string(nil), c.requeued...), append([]string(nil), c.dlq...)
}

type fakeHandler struct {
	handleFn func(ctx context.Context, event *model.SurveyEvent) error
	handled  []int64
}

func (h *fakeHandler) Handle(ctx context.Context, event *model.SurveyEvent) error {
	h.handled = append(h.handled, event.ID)
	if h.handleFn != nil {
		return h.handleFn(ctx, event)
	}
	return nil
}

func message(id string, attempt int) queue.Message {
	return queue.Message{
		ID:       id,
		TaskType: queue.TaskTypeSurveyEvent,
		Attempt:  attempt,
		Event: &model.SurveyEvent{
			ID:   int64(len(id)),
			Kind: model.SurveyEventEdited,
			Repo: model.RepoRef{Owner: "acme", Name: "web"},
		},
	}
}

var _ = Describe("Worker", func() {
	var (
		consumer *fakeConsumer
		handler  *fakeHandler
		ctx      context.Context
	)

	BeforeEach(func() {
		consumer = &fakeConsumer{}
		handler = &fakeHandler{}
		ctx = context.Background()
	})

	newWorker := func(maxAttempts int) *worker.Worker {
		return worker.New(consumer, handler, worker.Config{MaxAttempts: maxAttempts})
	}

	Describe("Process", func() {
		It("acks handled messages", func() {
			newWorker(1).Process(ctx, message("1-0", 1))

			_, acked, requeued, dlq := consumer.snapshot()
			Expect(acked).To(ConsistOf("1-0"))
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(BeEmpty())
			Expect(handler.handled).To(HaveLen(1))
		})

		It("sends malformed surveys straight to the DLQ", func() {
			handler.handleFn = func(context.Context, *model.SurveyEvent) error {
				return fmt.Errorf("evaluating: %w", survey.ErrMalformedSurvey)
			}

			newWorker(5).Process(ctx, message("1-0", 1))

			_, acked, requeued, dlq := consumer.snapshot()
			Expect(dlq).To(ConsistOf("1-0"))
			Expect(requeued).To(BeEmpty())
			Expect(acked).To(BeEmpty())
		})

		It("requeues transient failures below the attempt limit", func() {
			handler.handleFn = func(context.Context, *model.SurveyEvent) error {
				return errors.New("github unavailable")
			}

			newWorker(3).Process(ctx, message("1-0", 1))

			_, _, requeued, dlq := consumer.snapshot()
			Expect(requeued).To(ConsistOf("1-0"))
			Expect(dlq).To(BeEmpty())
		})

		It("dead-letters on the last attempt", func() {
			handler.handleFn = func(context.Context, *model.SurveyEvent) error {
				return errors.New("github unavailable")
			}

			newWorker(3).Process(ctx, message("1-0", 3))

			_, _, requeued, dlq := consumer.snapshot()
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(ConsistOf("1-0"))
		})

		It("does not retry by default", func() {
			handler.handleFn = func(context.Context, *model.SurveyEvent) error {
				return errors.New("store write failed")
			}

			newWorker(0).Process(ctx, message("1-0", 1))

			_, _, requeued, dlq := consumer.snapshot()
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(ConsistOf("1-0"))
		})

		It("drops unsupported events", func() {
			handler.handleFn = func(context.Context, *model.SurveyEvent) error {
				return service.ErrUnsupportedEvent
			}

			newWorker(3).Process(ctx, message("1-0", 1))

			_, acked, requeued, dlq := consumer.snapshot()
			Expect(acked).To(ConsistOf("1-0"))
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(BeEmpty())
		})

		It("recovers from handler panics", func() {
			handler.handleFn = func(context.Context, *model.SurveyEvent) error {
				panic("boom")
			}

			Expect(func() { newWorker(1).Process(ctx, message("1-0", 1)) }).NotTo(Panic())

			_, _, _, dlq := consumer.snapshot()
			Expect(dlq).To(ConsistOf("1-0"))
		})

		It("dead-letters messages without an event", func() {
			newWorker(1).Process(ctx, queue.Message{ID: "1-0", Attempt: 1})

			_, _, _, dlq := consumer.snapshot()
			Expect(dlq).To(ConsistOf("1-0"))
			Expect(handler.handled).To(BeEmpty())
		})
	})

	Describe("Run", func() {
		It("backs off after read errors and keeps consuming", func() {
			consumer.readErrs = []error{errors.New("redis down"), errors.New("redis down")}
			consumer.batches = [][]queue.Message{{message("2-0", 1)}}

			w := worker.New(consumer, handler, worker.Config{
				MaxAttempts: 1,
				NewBackOff: func() backoff.BackOff {
					return backoff.NewConstantBackOff(time.Millisecond)
				},
			})

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- w.Run(runCtx) }()

			Eventually(func() []string {
				_, acked, _, _ := consumer.snapshot()
				return acked
			}).Should(ConsistOf("2-0"))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("stops on Stop", func() {
			w := newWorker(1)
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			Eventually(func() int {
				reads, _, _, _ := consumer.snapshot()
				return reads
			}).Should(BeNumerically(">", 0))

			w.Stop()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
