package runapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/quill/pkg/history"
	"github.com/quillworksco/quill/pkg/runapi"
	"github.com/quillworksco/quill/pkg/stream"
)

var _ = Describe("Client", func() {
	var (
		mux    *http.ServeMux
		server *httptest.Server
		client *runapi.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		client = runapi.NewClient(server.URL)
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Health", func() {
		It("succeeds against a healthy server", func() {
			mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"status":"ok"}`)
			})
			Expect(client.Health(ctx)).To(Succeed())
		})

		It("fails against an unreachable server", func() {
			server.Close()
			Expect(client.Health(ctx)).NotTo(Succeed())
		})
	})

	Describe("ListAgents", func() {
		It("returns the served agents", func() {
			mux.HandleFunc("/agents", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"count":1,"agents":[{"agent_id":"copywriter","name":"Copywriter","model":"gpt-4o"}]}`)
			})

			agents, err := client.ListAgents(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(HaveLen(1))
			Expect(agents[0].AgentID).To(Equal("copywriter"))
			Expect(agents[0].Model).To(Equal("gpt-4o"))
		})
	})

	Describe("ListSessions", func() {
		It("filters by agent id", func() {
			var gotQuery string
			mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"count":1,"sessions":[{"session_id":"s1","agent_id":"copywriter","title":"Captions","created_at":100,"updated_at":200}]}`)
			})

			sessions, err := client.ListSessions(ctx, "copywriter")
			Expect(err).NotTo(HaveOccurred())
			Expect(gotQuery).To(ContainSubstring("component_id=copywriter"))
			Expect(sessions).To(HaveLen(1))
			Expect(sessions[0].SessionID).To(Equal("s1"))
			Expect(sessions[0].Title).To(Equal("Captions"))
		})
	})

	Describe("SessionRuns", func() {
		It("returns raw records the reconstructor can rebuild", func() {
			mux.HandleFunc("/sessions/s1/runs", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"count":1,"runs":[{"run_id":"r1","session_id":"s1","run_input":"hello","run_output":"hi there","created_at":100}]}`)
			})

			records, err := client.SessionRuns(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))

			messages := history.Reconstruct(records)
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].Content).To(Equal("hello"))
			Expect(messages[1].Content).To(Equal("hi there"))
		})

		It("maps 404 to ErrNotFound", func() {
			mux.HandleFunc("/sessions/missing/runs", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
			})

			_, err := client.SessionRuns(ctx, "missing")
			Expect(err).To(MatchError(runapi.ErrNotFound))
		})
	})

	Describe("DeleteSession", func() {
		It("succeeds on 204", func() {
			mux.HandleFunc("/sessions/s1", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodDelete))
				w.WriteHeader(http.StatusNoContent)
			})
			Expect(client.DeleteSession(ctx, "s1")).To(Succeed())
		})

		It("maps 404 to ErrNotFound", func() {
			mux.HandleFunc("/sessions/gone", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
			})
			Expect(client.DeleteSession(ctx, "gone")).To(MatchError(runapi.ErrNotFound))
		})
	})

	Describe("StartRun", func() {
		It("posts the form and returns the raw frame stream", func() {
			mux.HandleFunc("/agents/copywriter/runs", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.ParseForm()).To(Succeed())
				Expect(r.PostForm.Get("message")).To(Equal("Write a caption"))
				Expect(r.PostForm.Get("stream")).To(Equal("true"))
				Expect(r.PostForm.Get("session_id")).To(Equal("s1"))

				w.Header().Set("Content-Type", "application/x-ndjson")
				fmt.Fprintln(w, `{"event":"RunStarted","run_id":"r1","session_id":"s1"}`)
				fmt.Fprintln(w, `{"event":"RunContent","content":"Hello "}`)
				fmt.Fprintln(w, `{"event":"RunContent","content":"world"}`)
				fmt.Fprintln(w, `{"event":"RunCompleted","content":"Hello world"}`)
			})

			body, err := client.StartRun(ctx, "copywriter", "s1", "Write a caption")
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			result, err := stream.NewConsumer().Consume(stream.NewExtractor(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Content).To(Equal("Hello world"))
			Expect(result.SessionID).To(Equal("s1"))
			Expect(result.RunID).To(Equal("r1"))
		})

		It("maps an unknown agent to ErrNotFound", func() {
			mux.HandleFunc("/agents/nobody/runs", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
			})

			_, err := client.StartRun(ctx, "nobody", "", "hi")
			Expect(err).To(MatchError(runapi.ErrNotFound))
		})
	})

	It("surfaces server errors with the status", func() {
		mux.HandleFunc("/agents", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		_, err := client.ListAgents(ctx)
		Expect(err).To(MatchError(ContainSubstring("500")))
	})
})
