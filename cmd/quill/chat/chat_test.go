package chatcmder_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	chatcmder "github.com/quillworksco/quill/cmd/quill/chat"
	"github.com/quillworksco/quill/pkg/run"
)

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has --api-target flag with default value", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("api-target")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("a"))
		Expect(flag.DefValue).To(Equal("http://localhost:7777"))
	})

	It("has --agent flag defaulting to the copywriter", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("agent")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("copywriter"))
	})

	It("has --session flag with empty default", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("session")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal(""))
	})

	It("has --new flag defaulting to false", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("new")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("false"))
	})

	It("has --pick flag defaulting to false", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("pick")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("false"))
	})
})

var _ = Describe("Run event wire format", func() {
	// The chat command consumes newline-delimited run event frames from the
	// API server. These specs pin the frame shape the command depends on.

	It("parses a content frame", func() {
		line := `{"event":"RunContent","run_id":"r1","session_id":"s1","content":"Hello","created_at":1700000000.5}`

		var ev run.Event
		err := json.Unmarshal([]byte(line), &ev)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Event).To(Equal(run.EventRunContent))
		Expect(ev.RunID).To(Equal("r1"))
		Expect(ev.SessionID).To(Equal("s1"))
		Expect(ev.Content).To(Equal("Hello"))
	})

	It("parses a completion frame with tools", func() {
		line := `{"event":"RunCompleted","run_id":"r1","session_id":"s1","content":"Done","tools":[{"tool_call_id":"t1","tool_name":"tavily_search","created_at":1700000000.5}]}`

		var ev run.Event
		err := json.Unmarshal([]byte(line), &ev)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Event).To(Equal(run.EventRunCompleted))
		Expect(ev.Tools).To(HaveLen(1))
		Expect(ev.Tools[0].Name).To(Equal("tavily_search"))
	})
})
