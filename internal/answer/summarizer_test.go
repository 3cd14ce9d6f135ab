package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
)

// partChat answers each call with its sequence number and records every
// user prompt, so tests can see how a long transcript was split.
type partChat struct {
	users []string
}

func (c *partChat) Provider() string { return "fake" }

func (c *partChat) Complete(ctx context.Context, system, user string) (string, error) {
	c.users = append(c.users, user)
	return fmt.Sprintf("part %d", len(c.users)), nil
}

func newTestSummarizer(chat ChatBackend, chunkChars int) *Summarizer {
	return NewSummarizer(SummarizerOptions{
		Chat:       chat,
		Logger:     infra.NewLogger("test"),
		ChunkChars: chunkChars,
		BaseDelay:  time.Millisecond,
	})
}

func transcriptOf(texts ...string) domain.Transcript {
	segments := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segments[i] = domain.Segment{
			StartSec: float64(i * 10),
			EndSec:   float64(i*10 + 10),
			Text:     text,
		}
	}
	return domain.Transcript{VideoID: "vid1", Segments: segments}
}

func TestSummarizeShortTranscriptInOneCall(t *testing.T) {
	chat := &scriptedChat{answer: "a tidy overview"}
	sum := newTestSummarizer(chat, 4000)

	got, err := sum.Summarize(context.Background(), transcriptOf("the rocket launched", "the crew cheered"))
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got != "a tidy overview" {
		t.Fatalf("unexpected summary %q", got)
	}
	if chat.calls != 1 {
		t.Fatalf("expected a single backend call, got %d", chat.calls)
	}
	if !strings.Contains(chat.lastUser, "the rocket launched") {
		t.Fatalf("transcript text missing from prompt: %q", chat.lastUser)
	}
}

func TestSummarizeLongTranscriptCombinesChunkSummaries(t *testing.T) {
	chat := &partChat{}
	sum := newTestSummarizer(chat, 40)

	transcript := transcriptOf(
		"first stretch of narration about the launch preparations",
		"second stretch covering the countdown and liftoff events",
	)
	got, err := sum.Summarize(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if len(chat.users) < 3 {
		t.Fatalf("expected per-chunk calls plus a combining call, got %d", len(chat.users))
	}
	combine := chat.users[len(chat.users)-1]
	if !strings.Contains(combine, "part 1") || !strings.Contains(combine, "part 2") {
		t.Fatalf("combining call did not receive the partial summaries: %q", combine)
	}
	if got != fmt.Sprintf("part %d", len(chat.users)) {
		t.Fatalf("summary should come from the combining call, got %q", got)
	}
}

func TestSummarizeRetriesTransientFailureOnce(t *testing.T) {
	chat := &scriptedChat{answer: "recovered", failures: 1}
	sum := newTestSummarizer(chat, 4000)

	got, err := sum.Summarize(context.Background(), transcriptOf("some narration"))
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got != "recovered" {
		t.Fatalf("unexpected summary %q", got)
	}
	if chat.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", chat.calls)
	}
}

func TestSummarizePersistentFailureReturnsError(t *testing.T) {
	chat := &scriptedChat{failures: 99}
	sum := newTestSummarizer(chat, 4000)

	_, err := sum.Summarize(context.Background(), transcriptOf("some narration"))
	var sumErr *domain.SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("expected SummarizationError, got %v", err)
	}
	if chat.calls != 2 {
		t.Fatalf("expected 2 attempts before giving up, got %d", chat.calls)
	}
}

func TestSummarizeEmptyTranscriptRejected(t *testing.T) {
	chat := &scriptedChat{answer: "never"}
	sum := newTestSummarizer(chat, 4000)

	_, err := sum.Summarize(context.Background(), domain.Transcript{VideoID: "vid1"})
	var sumErr *domain.SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("expected SummarizationError, got %v", err)
	}
	if chat.calls != 0 {
		t.Fatalf("backend called for an empty transcript")
	}
}

func TestChunkTextBoundsEveryChunk(t *testing.T) {
	text := strings.Repeat("word ", 50)
	chunks := chunkText(strings.TrimSpace(text), 30)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var rejoined []string
	for _, chunk := range chunks {
		if len(chunk) > 30 {
			t.Fatalf("chunk exceeds bound: %d chars", len(chunk))
		}
		rejoined = append(rejoined, chunk)
	}
	if strings.Join(rejoined, " ") != strings.TrimSpace(text) {
		t.Fatalf("chunking lost text")
	}
}
