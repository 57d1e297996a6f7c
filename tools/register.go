package tools

import (
	"github.com/xiaorui775/ChatLab/store"
)

// Builtins holds the collaborators the built-in executors query.
type Builtins struct {
	store    store.MessageStore
	semantic SemanticSearcher
}

// RegisterBuiltins registers the full domain tool set against st. sem may be
// nil; the semantic_search tool then reports itself as not enabled.
func RegisterBuiltins(reg *Registry, st store.MessageStore, sem SemanticSearcher) error {
	b := &Builtins{store: st, semantic: sem}

	defs := []Tool{
		NewTool("search_messages", "Search chat messages by keywords, optionally filtered by sender and time range. Returns matches most recent first with a total count.").
			StringSliceParam("keywords", "Keywords to search for; a message matches if it contains any of them.", true).
			StringParam("sender", "Only messages from this member (name, alias or platform id).", false).
			IntParam("limit", "Maximum number of messages to return.", false).
			IntParam("offset", "Number of matches to skip, for pagination.", false).
			TimeParams().
			WithHandler(b.searchMessages).Build(),

		NewTool("recent_messages", "Fetch messages from the last N hours of the conversation.").
			IntParam("hours", "Window size in hours, default 24.", false).
			IntParam("limit", "Maximum number of messages to return.", false).
			WithHandler(b.recentMessages).Build(),

		NewTool("member_stats", "Per-member activity statistics: message count, characters, active days. Optionally for a single member or a time range.").
			StringParam("member", "Limit to one member (name, alias or platform id).", false).
			IntParam("top", "Return only the N most active members.", false).
			TimeParams().
			WithHandler(b.memberStats).Build(),

		NewTool("time_stats", "Message volume over time, bucketed by hour, day, week or month.").
			EnumParam("granularity", "Bucket size.", []string{"hour", "day", "week", "month"}, false).
			TimeParams().
			WithHandler(b.timeStats).Build(),

		NewTool("list_members", "List conversation members with their platform ids and aliases, optionally filtered by keyword.").
			StringParam("keyword", "Filter members whose name, alias or platform id matches.", false).
			WithHandler(b.listMembers).Build(),

		NewTool("member_name_history", "Historical display names of one member.").
			StringParam("member", "The member (name, alias or platform id).", true).
			WithHandler(b.memberNameHistory).Build(),

		NewTool("conversation_between", "Messages exchanged between two members where they were talking to each other.").
			StringParam("member_a", "First member (name, alias or platform id).", true).
			StringParam("member_b", "Second member (name, alias or platform id).", true).
			IntParam("limit", "Maximum number of messages to return.", false).
			TimeParams().
			WithHandler(b.conversationBetween).Build(),

		NewTool("message_context", "Messages surrounding a given message id, to see what a message was replying to.").
			IntParam("message_id", "The message id, as shown in other tool results.", true).
			IntParam("before", "Messages to include before, default 5.", false).
			IntParam("after", "Messages to include after, default 5.", false).
			WithHandler(b.messageContext).Build(),

		NewTool("search_sessions", "Find imported sessions by title keyword.").
			StringParam("keyword", "Keyword to match against session titles; empty lists all sessions.", false).
			WithHandler(b.searchSessions).Build(),

		NewTool("session_messages", "Messages of a session in time order, paginated.").
			StringParam("session_id", "Session to read; defaults to the current session.", false).
			IntParam("limit", "Maximum number of messages to return.", false).
			IntParam("offset", "Number of messages to skip.", false).
			TimeParams().
			WithHandler(b.sessionMessages).Build(),

		NewTool("session_summaries", "Previously generated summaries of a session.").
			StringParam("session_id", "Session to read; defaults to the current session.", false).
			WithHandler(b.sessionSummaries).Build(),

		NewTool("semantic_search", "Find conversation fragments by meaning rather than exact keywords. Use for vague or paraphrased questions.").
			StringParam("query", "What to look for, in natural language.", true).
			IntParam("top_k", "Number of fragments to return, default 5.", false).
			TimeParams().
			Summarize(true).
			WithHandler(b.semanticSearch).Build(),
	}

	for _, t := range defs {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
