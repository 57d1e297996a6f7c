package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(r *streamReconciler, chunks []string) string {
	var out string
	for _, c := range chunks {
		out += r.feed(c)
	}
	return out
}

func TestStreamReconciler(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		wantVisible string
		wantToolCut bool
	}{
		{
			name:        "plain text passes through",
			chunks:      []string{"Hello", " world"},
			wantVisible: "Hello world",
		},
		{
			name:        "think region suppressed",
			chunks:      []string{"<think>hidden</think>Hello"},
			wantVisible: "Hello",
		},
		{
			name:        "think tag split across chunks",
			chunks:      []string{"<thi", "nk>secret</th", "ink>Hello"},
			wantVisible: "Hello",
		},
		{
			name:        "close tag split across chunks",
			chunks:      []string{"<think>a</", "think>Hi"},
			wantVisible: "Hi",
		},
		{
			name:        "tool call onset stops emission",
			chunks:      []string{"Let me check.", `<tool_call>{"name":"x"}</tool_call>ignored`},
			wantVisible: "Let me check.",
			wantToolCut: true,
		},
		{
			name:        "tool call tag split across chunks",
			chunks:      []string{"ok<tool", `_call>{"name":"x"}`},
			wantVisible: "ok",
			wantToolCut: true,
		},
		{
			name:        "partial tag that never completes is held",
			chunks:      []string{"done<tool"},
			wantVisible: "done",
		},
		{
			name:        "lone angle bracket eventually emitted",
			chunks:      []string{"a < b", " and more"},
			wantVisible: "a < b and more",
		},
		{
			name:        "text between think regions",
			chunks:      []string{"<think>a</think>one<think>b</think>two"},
			wantVisible: "onetwo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &streamReconciler{}
			got := feedAll(r, tt.chunks)
			assert.Equal(t, tt.wantVisible, got)
			assert.Equal(t, tt.wantVisible, r.visible())
			assert.Equal(t, tt.wantToolCut, r.sawToolCall())
		})
	}
}

func TestStreamReconcilerVisibleMatchesIncremental(t *testing.T) {
	// What a consumer assembles from increments must equal visible(), the
	// answer kept on mid-stream cancellation.
	r := &streamReconciler{}
	chunks := []string{"<think>plan", "ning</think>The answer ", "is <tool"}
	assembled := feedAll(r, chunks)
	assert.Equal(t, assembled, r.visible())
	assert.Equal(t, "The answer is ", r.visible())
}

func TestStreamReconcilerRawContent(t *testing.T) {
	r := &streamReconciler{}
	feedAll(r, []string{"<think>a</think>", `x<tool_call>{"name":"t"}</tool_call>`})
	assert.Equal(t, `<think>a</think>x<tool_call>{"name":"t"}</tool_call>`, r.rawContent())
}
