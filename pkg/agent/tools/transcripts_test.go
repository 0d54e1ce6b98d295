package tools_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/quill/pkg/agent/tools"
)

var _ = Describe("TranscriptStore", func() {
	var dir string

	writeTranscript := func(creator, name, content string) {
		path := filepath.Join(dir, creator)
		Expect(os.MkdirAll(path, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(path, name), []byte(content), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("creates the directory when missing", func() {
		store, err := tools.NewTranscriptStore(filepath.Join(dir, "fresh"), nil)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		Expect(store.Creators()).To(BeEmpty())
	})

	It("indexes creators with transcript files, sorted", func() {
		writeTranscript("zoe", "video1.txt", "hello from zoe")
		writeTranscript("alex", "video1.md", "hello from alex")
		writeTranscript("empty-creator", "notes.pdf", "not a transcript")

		store, err := tools.NewTranscriptStore(dir, nil)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		Expect(store.Creators()).To(Equal([]string{"alex", "zoe"}))
	})

	It("concatenates a creator's transcripts with file headings", func() {
		writeTranscript("zoe", "b-second.txt", "second transcript")
		writeTranscript("zoe", "a-first.txt", "first transcript\n")

		store, err := tools.NewTranscriptStore(dir, nil)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		out, err := store.Transcripts("zoe")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("## a-first\n\nfirst transcript\n\n## b-second\n\nsecond transcript"))
	})

	It("errors for an unknown creator", func() {
		store, err := tools.NewTranscriptStore(dir, nil)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		_, err = store.Transcripts("nobody")
		Expect(err).To(MatchError(ContainSubstring("unknown creator")))
	})

	It("picks up transcripts added after startup", func() {
		store, err := tools.NewTranscriptStore(dir, nil)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		Expect(store.Creators()).To(BeEmpty())

		writeTranscript("newcomer", "debut.txt", "fresh content")

		Eventually(store.Creators, 5*time.Second, 50*time.Millisecond).
			Should(Equal([]string{"newcomer"}))
	})
})

var _ = Describe("Transcript tools", func() {
	var (
		dir   string
		store *tools.TranscriptStore
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(dir, "zoe"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "zoe", "launch.txt"),
			[]byte("launch day script"), 0o644)).To(Succeed())

		var err error
		store, err = tools.NewTranscriptStore(dir, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
	})

	It("lists creators as a JSON array", func() {
		tool := tools.NewListCreators(store)
		Expect(tool.Name()).To(Equal("list_available_creators"))

		out, err := tool.Call(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		var names []string
		Expect(json.Unmarshal([]byte(out), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"zoe"}))
	})

	It("returns a creator's transcripts", func() {
		tool := tools.NewCreatorTranscripts(store)
		Expect(tool.Name()).To(Equal("get_creator_transcriptions"))

		out, err := tool.Call(context.Background(), map[string]any{"creator": "zoe"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("## launch"))
		Expect(out).To(ContainSubstring("launch day script"))
	})

	It("requires the creator argument", func() {
		tool := tools.NewCreatorTranscripts(store)
		_, err := tool.Call(context.Background(), map[string]any{})
		Expect(err).To(MatchError(ContainSubstring("missing creator")))
	})
})
