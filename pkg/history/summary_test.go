package history_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/quill/pkg/history"
)

var _ = Describe("Summarize", func() {
	It("returns short text unchanged", func() {
		Expect(history.Summarize("Quick slogan", 30)).To(Equal("Quick slogan"))
	})

	It("collapses whitespace", func() {
		Expect(history.Summarize("a  b\n c", 30)).To(Equal("a b c"))
	})

	It("labels empty input", func() {
		Expect(history.Summarize("", 30)).To(Equal("Session"))
		Expect(history.Summarize("   ", 30)).To(Equal("Session"))
	})

	It("prefers a first sentence that fits", func() {
		text := "Write a launch post. Make it punchy and include a call to action for the spring sale."
		Expect(history.Summarize(text, 30)).To(Equal("Write a launch post"))
	})

	It("builds from content words when no sentence fits", func() {
		text := "please write the headline copy for the enterprise landing page"
		summary := history.Summarize(text, 30)
		Expect(summary).To(HaveSuffix("..."))
		Expect(len(summary)).To(BeNumerically("<=", 30))
		Expect(summary).NotTo(ContainSubstring("the "))
	})

	It("never exceeds the budget for unbroken text", func() {
		summary := history.Summarize("supercalifragilisticexpialidocious antidisestablishmentarianism", 20)
		Expect(len(summary)).To(BeNumerically("<=", 23))
	})
})

var _ = Describe("Title", func() {
	It("summarizes the first resolvable user message", func() {
		title := history.Title([]history.RawRecord{
			record(`{"tools":[{"tool_name":"search"}]}`),
			record(`{"run_input":"Plan our newsletter","created_at":1}`),
		})
		Expect(title).To(Equal("Plan our newsletter"))
	})

	It("labels sessions with no user text", func() {
		Expect(history.Title(nil)).To(Equal("Empty session"))
		Expect(history.Title([]history.RawRecord{record(`{}`)})).To(Equal("Empty session"))
	})
})
