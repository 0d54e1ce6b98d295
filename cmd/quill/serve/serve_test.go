package servecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/quillworksco/quill/cmd/quill/serve"
)

var _ = Describe("NewServeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))
	})

	It("has --listen flag with default value", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("listen")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("l"))
		Expect(flag.DefValue).To(Equal(":7777"))
	})

	It("has --storage flag defaulting to sqlite", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("storage")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("sqlite"))
	})

	It("has --sqlite flag with default path", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("sqlite")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("s"))
		Expect(flag.DefValue).To(Equal("quill.db"))
	})

	It("has --model flag with default value", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("model")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("m"))
		Expect(flag.DefValue).To(Equal("gpt-4o"))
	})

	It("has --history-runs flag with default value", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("history-runs")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("10"))
	})

	It("has --transcripts-dir flag with default value", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("transcripts-dir")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("transcriptions"))
	})

	It("has --events-provider flag defaulting to none", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("events-provider")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("none"))
	})

	It("has --events-topic flag with default value", func() {
		cmd := servecmder.NewServeCmd()
		flag := cmd.Flags().Lookup("events-topic")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("quill.runs"))
	})
})
