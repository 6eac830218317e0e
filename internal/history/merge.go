package history

// Merge reconciles the remote and local copies of a conversation: remote
// entries first, then local ones, deduplicated by Content.
//
// The first occurrence of a content wins, so a server-confirmed message
// shadows a cached one with the same text. Synthetic entries never shadow a
// genuine message: they are dropped when any genuine entry carries the same
// content, wherever it appears.
func Merge(remote, local []Message) []Message {
	all := make([]Message, 0, len(remote)+len(local))
	all = append(all, remote...)
	all = append(all, local...)
	return Dedup(all)
}

// Dedup removes repeated contents from msgs keeping first occurrences.
// The result is never nil.
func Dedup(msgs []Message) []Message {
	genuine := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if !m.Synthetic {
			genuine[m.Content] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(msgs))
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.Content]; dup {
			continue
		}
		if m.Synthetic {
			if _, shadowed := genuine[m.Content]; shadowed {
				continue
			}
		}
		seen[m.Content] = struct{}{}
		out = append(out, m)
	}
	return out
}

// DropEmpty removes entries with no content, such as records that decoded
// from a JSON null. The result is never nil.
func DropEmpty(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content != "" {
			out = append(out, m)
		}
	}
	return out
}
