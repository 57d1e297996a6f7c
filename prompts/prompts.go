// Package prompts renders the agent's prompts from embedded templates.
// The system prompt is a user-editable role section followed by a locked,
// generated section (date, owner identity, lookup and time conventions).
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*
var templatesFS embed.FS

// Chat types accepted by SystemPromptData.
const (
	ChatTypeGroup   = "group"
	ChatTypePrivate = "private"
)

const defaultRoleEN = "You are a chat-history analyst. You answer questions about an imported " +
	"chat log by querying it with the available tools, then summarizing what the data shows."

const defaultRoleZH = "你是一名聊天记录分析助手。你通过可用的工具查询已导入的聊天记录，" +
	"然后根据数据回答用户的问题。"

// SystemPromptData feeds the system prompt template. RoleTemplate is the
// user-editable section; when empty a default role is used.
type SystemPromptData struct {
	RoleTemplate    string
	ChatType        string // "group" or "private"
	Locale          string // "zh" or anything else for English
	Date            string // defaults to today when empty
	OwnerName       string
	OwnerPlatformID string
	TaggedProtocol  bool // advertise the tagged tool-call fallback
}

// NormalizeLocale maps a BCP47-ish locale tag onto the two supported template
// locales.
func NormalizeLocale(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		return "zh"
	}
	return "en"
}

// RenderSystemPrompt assembles the full system prompt for one turn.
func RenderSystemPrompt(d SystemPromptData) (string, error) {
	locale := NormalizeLocale(d.Locale)
	if d.Date == "" {
		d.Date = time.Now().Format("2006-01-02")
	}
	if d.ChatType == "" {
		d.ChatType = ChatTypeGroup
	}

	role := strings.TrimSpace(d.RoleTemplate)
	if role == "" {
		if locale == "zh" {
			role = defaultRoleZH
		} else {
			role = defaultRoleEN
		}
	}

	data := struct {
		Role            string
		Date            string
		ChatType        string
		OwnerName       string
		OwnerPlatformID string
		TaggedProtocol  bool
	}{role, d.Date, d.ChatType, d.OwnerName, d.OwnerPlatformID, d.TaggedProtocol}

	return render("templates/system_"+locale+".md", data)
}

// RenderQueryRewritePrompt returns the system prompt used to rewrite a
// retrieval query; the raw query goes in as the user message.
func RenderQueryRewritePrompt(locale string) (string, error) {
	return render("templates/rewrite_query_"+NormalizeLocale(locale)+".md", nil)
}

// RenderRerankPrompt returns the system prompt and the composed user message
// for reranking candidate fragments.
func RenderRerankPrompt(query string, candidates []string) (systemPrompt, userPrompt string, err error) {
	systemPrompt, err = render("templates/rerank_system.md", nil)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nFragments:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, c)
	}
	return systemPrompt, b.String(), nil
}

// RenderSummarizationPrompt returns the system prompt for condensing an
// oversized tool result; the raw result goes in as the user message.
func RenderSummarizationPrompt(query, toolInputs string) (string, error) {
	data := struct {
		Query      string
		ToolInputs string
	}{query, toolInputs}
	return render("templates/summarize_system.md", data)
}

// ForceAnswerInstruction is the synthetic user message appended when the tool
// round limit is reached.
func ForceAnswerInstruction(locale string) string {
	if NormalizeLocale(locale) == "zh" {
		return "不要再调用任何工具。根据你已经获得的信息，直接给出最终回答。"
	}
	return "Do not call any more tools. Give your final answer now based on the information you already have."
}

func render(path string, data any) (string, error) {
	content, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(path).Parse(string(content))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
