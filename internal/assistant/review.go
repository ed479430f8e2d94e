package assistant

import (
	"codex/internal/agent"
	"codex/internal/editor"
)

// Review opens a diff tab for a created or updated file so the change can be
// inspected. It reports whether the result had anything to show.
func Review(tabs *editor.Tabs, r *agent.Result) (editor.Tab, bool) {
	if r == nil || !r.Success {
		return editor.Tab{}, false
	}
	switch r.Action {
	case agent.ActionCreateFile:
		return tabs.OpenDiff(r.FileID, r.FilePath, "", r.Content, "New File: "), true
	case agent.ActionUpdateFile:
		return tabs.OpenDiff(r.FileID, r.FilePath, r.OriginalContent, r.ModifiedContent, "File Update: "), true
	}
	return editor.Tab{}, false
}
