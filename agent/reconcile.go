package agent

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
	toolOpen   = "<tool_call>"
)

const (
	stateText = iota
	stateThink
	stateStopped
)

// streamReconciler turns raw streamed model text into the user-visible
// answer: reasoning regions are suppressed, and the first tool-call onset
// stops emission for the rest of the response. Matching runs against the
// cumulative buffer, so tags split across chunk boundaries are handled by
// holding back any trailing partial tag until the next chunk resolves it.
type streamReconciler struct {
	raw     strings.Builder
	emitted strings.Builder
	pos     int
	state   int
}

// feed appends a raw chunk and returns the newly visible text, which may be
// empty.
func (r *streamReconciler) feed(chunk string) string {
	r.raw.WriteString(chunk)
	if r.state == stateStopped {
		return ""
	}

	s := r.raw.String()
	var out strings.Builder

	for r.pos < len(s) {
		rest := s[r.pos:]
		switch r.state {
		case stateText:
			iThink := strings.Index(rest, thinkOpen)
			iTool := strings.Index(rest, toolOpen)

			if iTool >= 0 && (iThink < 0 || iTool <= iThink) {
				out.WriteString(rest[:iTool])
				r.pos += iTool
				r.state = stateStopped
				r.emitted.WriteString(out.String())
				return out.String()
			}
			if iThink >= 0 {
				out.WriteString(rest[:iThink])
				r.pos += iThink + len(thinkOpen)
				r.state = stateThink
				continue
			}

			hold := partialTagSuffix(rest)
			out.WriteString(rest[:len(rest)-hold])
			r.pos = len(s) - hold
			r.emitted.WriteString(out.String())
			return out.String()

		case stateThink:
			j := strings.Index(rest, thinkClose)
			if j < 0 {
				// Close tag not seen yet; everything stays suppressed.
				r.emitted.WriteString(out.String())
				return out.String()
			}
			r.pos += j + len(thinkClose)
			r.state = stateText
		}
	}

	r.emitted.WriteString(out.String())
	return out.String()
}

// visible returns everything emitted so far. On mid-stream cancellation this
// is the answer the caller keeps.
func (r *streamReconciler) visible() string { return r.emitted.String() }

// rawContent returns the full unfiltered model output.
func (r *streamReconciler) rawContent() string { return r.raw.String() }

// sawToolCall reports whether emission stopped on a tool-call onset.
func (r *streamReconciler) sawToolCall() bool { return r.state == stateStopped }

// partialTagSuffix returns the length of the longest suffix of s that is a
// proper prefix of one of the suppressed tags.
func partialTagSuffix(s string) int {
	max := len(toolOpen) - 1
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		suffix := s[len(s)-n:]
		if strings.HasPrefix(thinkOpen, suffix) || strings.HasPrefix(toolOpen, suffix) {
			return n
		}
	}
	return 0
}
