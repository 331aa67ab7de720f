package prompt

import (
	"strings"
	"testing"

	"github.com/quillchat/quill/internal/retrieval"
)

func TestBuild_NoContextOmitsContextSection(t *testing.T) {
	t.Parallel()

	got := Build(nil, "")

	if !strings.Contains(got, "You are Quill") {
		t.Error("prompt must carry the assistant identity")
	}
	if strings.Contains(got, "CONTEXTUAL INFORMATION") {
		t.Error("empty context must not produce a context header")
	}
	if strings.Contains(got, "CUSTOM INSTRUCTIONS") {
		t.Error("blank instructions must not produce a personalization block")
	}
}

func TestBuild_BlankInstructionsIgnored(t *testing.T) {
	t.Parallel()

	got := Build(nil, "   \n\t ")
	if strings.Contains(got, "CUSTOM INSTRUCTIONS") {
		t.Error("whitespace-only instructions must be ignored")
	}
}

func TestBuild_PersonalizationAppendedVerbatim(t *testing.T) {
	t.Parallel()

	got := Build(nil, "  Always answer in French.  ")
	if !strings.Contains(got, "USER PERSONALIZATION / CUSTOM INSTRUCTIONS:\nAlways answer in French.") {
		t.Errorf("personalization block missing or mangled:\n%s", got)
	}
}

func TestBuild_ContextSerialization(t *testing.T) {
	t.Parallel()

	items := []retrieval.ContextItem{
		{Title: "design.md", Content: "The system uses a write-ahead log.", Type: retrieval.TypeFile},
		{Title: "Raft paper", Content: "Consensus algorithm overview.", Type: retrieval.TypeWeb, URL: "https://raft.github.io"},
	}

	got := Build(items, "")

	if !strings.Contains(got, "CONTEXTUAL INFORMATION") {
		t.Fatal("context header missing")
	}
	if !strings.Contains(got, "[Source: Title]") {
		t.Error("citation instruction missing")
	}
	if !strings.Contains(got, "[Document: design.md]\nThe system uses a write-ahead log.") {
		t.Errorf("document item not serialized as expected:\n%s", got)
	}
	if !strings.Contains(got, "[Web: Raft paper]\nURL: https://raft.github.io\nConsensus algorithm overview.") {
		t.Errorf("web item not serialized as expected:\n%s", got)
	}
	if !strings.Contains(got, "write-ahead log.\n\n[Web:") {
		t.Error("items must be joined by a blank line")
	}
}

func TestBuild_WebItemWithoutURLFallsBackToDocumentForm(t *testing.T) {
	t.Parallel()

	items := []retrieval.ContextItem{
		{Title: "page", Content: "snippet", Type: retrieval.TypeWeb},
	}

	got := Build(items, "")
	if !strings.Contains(got, "[Document: page]\nsnippet") {
		t.Errorf("web item without URL should render in document form:\n%s", got)
	}
}

func TestBuild_UntitledItem(t *testing.T) {
	t.Parallel()

	got := Build([]retrieval.ContextItem{{Content: "orphan text", Type: retrieval.TypeFile}}, "")
	if !strings.Contains(got, "[Document: Unknown]") {
		t.Errorf("untitled item should render as Unknown:\n%s", got)
	}
}
