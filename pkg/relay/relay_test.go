package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/troubleshoot/pkg/llm"
	"github.com/papercomputeco/troubleshoot/pkg/relay"
)

// upstreamRequest is what the fake upstream observed for one call.
type upstreamRequest struct {
	Path          string
	Authorization string
	ContentType   string
	Body          struct {
		Model     string        `json:"model"`
		Messages  []llm.Message `json:"messages"`
		MaxTokens int           `json:"max_tokens"`
	}
}

// fakeUpstream is a scripted chat completions endpoint.
type fakeUpstream struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []upstreamRequest

	status int
	body   string
	delay  time.Duration
}

func newFakeUpstream() *fakeUpstream {
	f := &fakeUpstream{
		status: http.StatusOK,
		body:   `{"choices":[{"message":{"role":"assistant","content":"Check your battery."}}]}`,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	var req upstreamRequest
	req.Path = r.URL.Path
	req.Authorization = r.Header.Get("Authorization")
	req.ContentType = r.Header.Get("Content-Type")
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &req.Body)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	status, body, delay := f.status, f.body, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeUpstream) calls() []upstreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamRequest(nil), f.requests...)
}

var _ = Describe("Relay", func() {
	var (
		upstream *fakeUpstream
		r        *relay.Relay
		ctx      context.Context
	)

	newRelay := func(timeout time.Duration) *relay.Relay {
		return relay.New(relay.Config{
			APIKey:  "test-key",
			BaseURL: upstream.server.URL + "/v1",
			Timeout: timeout,
		}, zap.NewNop())
	}

	BeforeEach(func() {
		ctx = context.Background()
		upstream = newFakeUpstream()
		r = newRelay(5 * time.Second)
	})

	AfterEach(func() {
		upstream.server.Close()
	})

	Describe("New", func() {
		It("fills unset fields with the upstream defaults", func() {
			cfg := relay.New(relay.Config{APIKey: "k"}, zap.NewNop()).Config()

			Expect(cfg.BaseURL).To(Equal("https://api.openai.com/v1"))
			Expect(cfg.Model).To(Equal("gpt-3.5-turbo"))
			Expect(cfg.MaxTokens).To(Equal(1000))
			Expect(cfg.Timeout).To(Equal(30 * time.Second))
			Expect(cfg.SystemPrompt).To(Equal("You are an automotive troubleshooting assistant. Help diagnose car problems."))
		})
	})

	Describe("Handle", func() {
		Context("with a single turn", func() {
			It("prepends the system turn before the user turn", func() {
				_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
				Expect(err).NotTo(HaveOccurred())

				calls := upstream.calls()
				Expect(calls).To(HaveLen(1))
				Expect(calls[0].Body.Messages).To(Equal([]llm.Message{
					{Role: llm.RoleSystem, Content: relay.DefaultSystemPrompt},
					{Role: llm.RoleUser, Content: "X"},
				}))
			})

			It("does not modify the caller's slice", func() {
				turns := []llm.Message{{Role: llm.RoleUser, Content: "X"}}

				_, err := r.Handle(ctx, turns)
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(Equal([]llm.Message{{Role: llm.RoleUser, Content: "X"}}))
			})

			It("prepends even when the single turn is not a user turn", func() {
				_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleSystem, Content: "custom"}})
				Expect(err).NotTo(HaveOccurred())

				Expect(upstream.calls()[0].Body.Messages).To(HaveLen(2))
			})
		})

		Context("with more than one turn", func() {
			It("forwards the conversation unmodified", func() {
				turns := []llm.Message{
					{Role: llm.RoleUser, Content: "car won't start"},
					{Role: llm.RoleAssistant, Content: "does it crank?"},
					{Role: llm.RoleUser, Content: "no"},
				}

				_, err := r.Handle(ctx, turns)
				Expect(err).NotTo(HaveOccurred())

				Expect(upstream.calls()[0].Body.Messages).To(Equal(turns))
			})

			It("forwards unknown roles without validation", func() {
				turns := []llm.Message{
					{Role: "mechanic", Content: "a"},
					{Role: llm.RoleUser, Content: "b"},
				}

				_, err := r.Handle(ctx, turns)
				Expect(err).NotTo(HaveOccurred())
				Expect(upstream.calls()[0].Body.Messages).To(Equal(turns))
			})
		})

		It("sends the credential, content type, model and token cap", func() {
			_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(err).NotTo(HaveOccurred())

			call := upstream.calls()[0]
			Expect(call.Path).To(Equal("/v1/chat/completions"))
			Expect(call.Authorization).To(Equal("Bearer test-key"))
			Expect(call.ContentType).To(HavePrefix("application/json"))
			Expect(call.Body.Model).To(Equal("gpt-3.5-turbo"))
			Expect(call.Body.MaxTokens).To(Equal(1000))
		})

		It("returns the first choice's content", func() {
			upstream.body = `{"choices":[{"message":{"content":"Check your battery."}},{"message":{"content":"ignored"}}]}`

			reply, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("Check your battery."))
		})

		It("rejects an empty conversation without calling the upstream", func() {
			_, err := r.Handle(ctx, nil)

			Expect(relay.KindOf(err)).To(Equal(relay.KindInput))
			Expect(errors.Is(err, relay.ErrEmptyConversation)).To(BeTrue())
			Expect(upstream.calls()).To(BeEmpty())
		})

		DescribeTable("upstream failure statuses",
			func(status int) {
				upstream.status = status
				upstream.body = `{"error":{"message":"rejected","type":"invalid_request_error"}}`

				_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).NotTo(BeEmpty())
				Expect(relay.KindOf(err)).To(Equal(relay.KindUpstream))
				Expect(upstream.calls()).To(HaveLen(1))
			},
			Entry("unauthorized", http.StatusUnauthorized),
			Entry("rate limited", http.StatusTooManyRequests),
			Entry("server error", http.StatusInternalServerError),
		)

		It("classifies a non-JSON error body as an upstream error", func() {
			upstream.status = http.StatusBadGateway
			upstream.body = "<html>bad gateway</html>"

			_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(relay.KindOf(err)).To(Equal(relay.KindUpstream))
		})

		It("fails with a response format error when there are no choices", func() {
			upstream.body = `{"choices":[]}`

			_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(relay.KindOf(err)).To(Equal(relay.KindResponseFormat))
		})

		DescribeTable("fails with a response format error when the first choice is incomplete",
			func(body string) {
				upstream.body = body

				reply, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
				Expect(err).To(HaveOccurred())
				Expect(reply).To(BeEmpty())
				Expect(relay.KindOf(err)).To(Equal(relay.KindResponseFormat))
				Expect(upstream.calls()).To(HaveLen(1))
			},
			Entry("choice has no message", `{"choices":[{}]}`),
			Entry("message has no content", `{"choices":[{"message":{}}]}`),
			Entry("message content is null", `{"choices":[{"message":{"role":"assistant","content":null}}]}`),
		)

		It("returns an empty content string as the reply", func() {
			upstream.body = `{"choices":[{"message":{"role":"assistant","content":""}}]}`

			reply, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(BeEmpty())
		})

		It("fails with a response format error on a malformed success body", func() {
			upstream.body = "not json"

			_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(relay.KindOf(err)).To(Equal(relay.KindResponseFormat))
		})

		It("gives up at the timeout bound", func() {
			upstream.delay = 5 * time.Second
			r = newRelay(200 * time.Millisecond)

			start := time.Now()
			_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})

			Expect(relay.KindOf(err)).To(Equal(relay.KindTransport))
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
			Expect(upstream.calls()).To(HaveLen(1))
		})

		It("fails with a transport error when the upstream is unreachable", func() {
			upstream.server.Close()

			_, err := r.Handle(ctx, []llm.Message{{Role: llm.RoleUser, Content: "X"}})
			Expect(relay.KindOf(err)).To(Equal(relay.KindTransport))
		})
	})
})
