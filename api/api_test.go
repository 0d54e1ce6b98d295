package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	openai "github.com/sashabaranov/go-openai"

	"github.com/quillworksco/quill/pkg/agent"
	"github.com/quillworksco/quill/pkg/logger"
	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/storage/inmemory"
	"github.com/quillworksco/quill/pkg/stream"
)

// scriptedModel serves one canned SSE completion per request.
type scriptedModel struct {
	scripts [][]string
}

func (m *scriptedModel) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)

		var script []string
		if len(m.scripts) > 0 {
			script = m.scripts[0]
			m.scripts = m.scripts[1:]
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, data := range script {
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func contentChunk(text string) string {
	return fmt.Sprintf(
		`{"id":"chunk","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":%s},"finish_reason":null}]}`,
		strconv.Quote(text))
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

var _ = Describe("Server", func() {
	var (
		model       *scriptedModel
		modelServer *httptest.Server
		store       *inmemory.Driver
		server      *Server
		ctx         context.Context
	)

	BeforeEach(func() {
		model = &scriptedModel{}
		modelServer = httptest.NewServer(model.handler())
		store = inmemory.NewDriver()
		ctx = context.Background()

		cfg := openai.DefaultConfig("test-key")
		cfg.BaseURL = modelServer.URL + "/v1"
		a := agent.New(agent.Config{
			ID:          "copywriter",
			Name:        "Copywriter",
			Description: "Writes marketing copy.",
			Model:       "gpt-4o",
			HistoryRuns: 10,
		}, openai.NewClientWithConfig(cfg), store)

		server = NewServer(Config{ListenAddr: ":0"}, store, []*agent.Agent{a}, logger.Nop())
	})

	AfterEach(func() {
		modelServer.Close()
	})

	seedSession := func(id, agentID, title string, at float64) {
		sess := &run.Session{
			SessionID: id,
			AgentID:   agentID,
			Title:     title,
			CreatedAt: at,
			UpdatedAt: at,
		}
		Expect(store.CreateSession(ctx, sess)).To(Succeed())
	}

	It("responds to health checks", func() {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("status", "ok"))
	})

	It("lists served agents", func() {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/agents", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body struct {
			Count  int         `json:"count"`
			Agents []AgentInfo `json:"agents"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Count).To(Equal(1))
		Expect(body.Agents[0].AgentID).To(Equal("copywriter"))
		Expect(body.Agents[0].Model).To(Equal("gpt-4o"))
	})

	Describe("POST /agents/:id/runs", func() {
		It("rejects unknown agents", func() {
			resp, err := server.app.Test(formRequest("/agents/nobody/runs",
				url.Values{"message": {"hi"}}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("rejects runs without a message", func() {
			resp, err := server.app.Test(formRequest("/agents/copywriter/runs",
				url.Values{"message": {"  "}}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("streams JSON event frames a stream consumer can assemble", func() {
			model.scripts = [][]string{{
				contentChunk("Here is "),
				contentChunk("your copy."),
			}}

			resp, err := server.app.Test(formRequest("/agents/copywriter/runs",
				url.Values{"message": {"Write a caption"}, "stream": {"true"}}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			defer resp.Body.Close()

			result, err := stream.NewConsumer().Consume(stream.NewExtractor(resp.Body))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Content).To(Equal("Here is your copy."))
			Expect(result.SessionID).NotTo(BeEmpty())
			Expect(result.RunID).NotTo(BeEmpty())

			records, err := store.ListRuns(ctx, result.SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Output).To(Equal("Here is your copy."))
		})

		It("returns a single completed event when stream=false", func() {
			model.scripts = [][]string{{contentChunk("Done.")}}

			resp, err := server.app.Test(formRequest("/agents/copywriter/runs",
				url.Values{"message": {"Write a caption"}, "stream": {"false"}}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var ev run.Event
			Expect(json.NewDecoder(resp.Body).Decode(&ev)).To(Succeed())
			Expect(ev.Event).To(Equal(run.EventRunCompleted))
			Expect(ev.Content).To(Equal("Done."))
			Expect(ev.SessionID).NotTo(BeEmpty())
		})

		It("attaches runs to an existing session", func() {
			model.scripts = [][]string{
				{contentChunk("one")},
				{contentChunk("two")},
			}

			resp, err := server.app.Test(formRequest("/agents/copywriter/runs",
				url.Values{"message": {"first"}, "stream": {"false"}}), -1)
			Expect(err).NotTo(HaveOccurred())
			var first run.Event
			Expect(json.NewDecoder(resp.Body).Decode(&first)).To(Succeed())

			resp, err = server.app.Test(formRequest("/agents/copywriter/runs",
				url.Values{
					"message":    {"second"},
					"stream":     {"false"},
					"session_id": {first.SessionID},
				}), -1)
			Expect(err).NotTo(HaveOccurred())
			var second run.Event
			Expect(json.NewDecoder(resp.Body).Decode(&second)).To(Succeed())
			Expect(second.SessionID).To(Equal(first.SessionID))

			records, err := store.ListRuns(ctx, first.SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})

	Describe("GET /sessions", func() {
		It("lists sessions filtered by component_id", func() {
			seedSession("s1", "copywriter", "Caption ideas", 100)
			seedSession("s2", "copywriter", "Launch plan", 200)
			seedSession("s3", "other-agent", "Unrelated", 300)

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet,
				"/sessions?type=agent&component_id=copywriter", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count    int            `json:"count"`
				Sessions []*run.Session `json:"sessions"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Count).To(Equal(2))
			Expect(body.Sessions[0].SessionID).To(Equal("s2"))
			Expect(body.Sessions[1].SessionID).To(Equal("s1"))
		})

		It("lists every session without a filter", func() {
			seedSession("s1", "copywriter", "One", 100)
			seedSession("s2", "other-agent", "Two", 200)

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/sessions", nil))
			Expect(err).NotTo(HaveOccurred())

			var body struct {
				Count int `json:"count"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Count).To(Equal(2))
		})
	})

	Describe("GET /sessions/:id/runs", func() {
		It("returns 404 for an unknown session", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet,
				"/sessions/missing/runs", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns the session's records in creation order", func() {
			seedSession("s1", "copywriter", "One", 100)
			Expect(store.SaveRun(ctx, &run.Record{
				RunID: "r2", SessionID: "s1", Input: "second", Output: "b", CreatedAt: 200,
			})).To(Succeed())
			Expect(store.SaveRun(ctx, &run.Record{
				RunID: "r1", SessionID: "s1", Input: "first", Output: "a", CreatedAt: 100,
			})).To(Succeed())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet,
				"/sessions/s1/runs", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count int           `json:"count"`
				Runs  []*run.Record `json:"runs"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Count).To(Equal(2))
			Expect(body.Runs[0].RunID).To(Equal("r1"))
			Expect(body.Runs[1].RunID).To(Equal("r2"))
		})
	})

	Describe("DELETE /sessions/:id", func() {
		It("deletes a session and returns 204", func() {
			seedSession("s1", "copywriter", "One", 100)

			resp, err := server.app.Test(httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			_, err = store.GetSession(ctx, "s1")
			Expect(err).To(HaveOccurred())
		})

		It("returns 404 for an unknown session", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodDelete, "/sessions/nope", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
