package sessionscmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	sessionscmder "github.com/quillworksco/quill/cmd/quill/sessions"
)

var _ = Describe("NewSessionsCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := sessionscmder.NewSessionsCmd()
		Expect(cmd.Use).To(Equal("sessions"))
	})

	It("has list and delete subcommands", func() {
		cmd := sessionscmder.NewSessionsCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("list", "delete"))
	})

	Describe("list subcommand", func() {
		It("has --api-target flag with default value", func() {
			cmd := sessionscmder.NewSessionsCmd()
			list, _, err := cmd.Find([]string{"list"})
			Expect(err).NotTo(HaveOccurred())

			flag := list.Flags().Lookup("api-target")
			Expect(flag).NotTo(BeNil())
			Expect(flag.DefValue).To(Equal("http://localhost:7777"))
		})

		It("has --agent filter flag", func() {
			cmd := sessionscmder.NewSessionsCmd()
			list, _, err := cmd.Find([]string{"list"})
			Expect(err).NotTo(HaveOccurred())

			flag := list.Flags().Lookup("agent")
			Expect(flag).NotTo(BeNil())
			Expect(flag.DefValue).To(Equal("copywriter"))
		})

		It("rejects positional arguments", func() {
			cmd := sessionscmder.NewSessionsCmd()
			cmd.SetArgs([]string{"list", "extra"})
			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("delete subcommand", func() {
		It("requires exactly one argument", func() {
			cmd := sessionscmder.NewSessionsCmd()
			cmd.SetArgs([]string{"delete"})
			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})
	})
})
