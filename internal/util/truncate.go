package util

// TruncateTail truncates s to maxLen, keeping the end. Oracle output and
// error logs carry their most relevant content at the tail, so the head is
// what gets dropped.
func TruncateTail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "...(truncated)...\n" + s[len(s)-maxLen:]
}

// TruncateHead truncates s to maxLen with ellipsis, keeping the start.
// Used for summaries and diagnostic excerpts where the opening matters.
func TruncateHead(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
