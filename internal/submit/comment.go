package submit

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Stack comment sentinels (spec.md §4.4/§6). The block between them is
// rewritten idempotently: list_pr_comments scans for a comment whose body
// contains commentPrefix, and that comment is updated in place rather than
// duplicated.
const (
	commentPrefix  = "<!-- jj-ryu-stack-begin -->"
	commentPostfix = "<!-- jj-ryu-stack-end -->"
)

// StackCommentEntry is one line of the rendered stack list.
type StackCommentEntry struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// StackCommentData is the machine-readable payload embedded in the comment
// alongside its human-readable Markdown rendering (spec.md §6: "a JSON
// block may be embedded... its exact schema is implementation-defined but
// stable within a version").
type StackCommentData struct {
	Entries []StackCommentEntry `json:"entries"`
	Current int                 `json:"current"` // PR number marked as "this PR"
}

// BuildStackComment renders the canonical comment body for one PR in the
// stack: the delimited block containing the Markdown list (current PR
// marked with an arrow) and the embedded JSON payload.
func BuildStackComment(data StackCommentData) string {
	var sb strings.Builder
	sb.WriteString(commentPrefix)
	sb.WriteString("\nStack:\n")
	for _, e := range data.Entries {
		marker := "-"
		if e.Number == data.Current {
			marker = "- 👉"
		}
		fmt.Fprintf(&sb, "%s #%d %s\n", marker, e.Number, e.Title)
	}
	payload, _ := json.Marshal(data)
	sb.WriteString("<!--\n")
	sb.Write(payload)
	sb.WriteString("\n-->\n")
	sb.WriteString(commentPostfix)
	return sb.String()
}

var stackCommentJSONBlock = regexp.MustCompile(`(?s)<!--\n(.*?)\n-->`)

// ParseStackComment extracts the embedded StackCommentData from a rendered
// comment body, verifying the sentinels round-trip (spec.md §8: "Stack-
// comment round-trip" property).
func ParseStackComment(body string) (StackCommentData, bool) {
	start := strings.Index(body, commentPrefix)
	end := strings.Index(body, commentPostfix)
	if start < 0 || end < 0 || end < start {
		return StackCommentData{}, false
	}
	block := body[start : end+len(commentPostfix)]
	m := stackCommentJSONBlock.FindStringSubmatch(block)
	if m == nil {
		return StackCommentData{}, false
	}
	var data StackCommentData
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return StackCommentData{}, false
	}
	return data, true
}

// IsStackComment reports whether body contains a jj-ryu stack comment
// block, the exact-prefix-match rule spec.md §9 requires for comment
// de-duplication across platforms with differing comment models.
func IsStackComment(body string) bool {
	return strings.Contains(body, commentPrefix)
}
