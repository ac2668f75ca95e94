package pipeline

import "horse.fit/leadscout/internal/leads"

// Partition returns the candidates whose id is not in stored, in their
// original order. Repeated ids keep only their first occurrence.
func Partition(candidates []leads.Candidate, stored map[string]struct{}) []leads.Candidate {
	out := make([]leads.Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := stored[c.RedditID]; ok {
			continue
		}
		if _, ok := seen[c.RedditID]; ok {
			continue
		}
		seen[c.RedditID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// distinctIDs lists candidate ids once each, in first-seen order.
func distinctIDs(candidates []leads.Candidate) []string {
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.RedditID]; ok {
			continue
		}
		seen[c.RedditID] = struct{}{}
		ids = append(ids, c.RedditID)
	}
	return ids
}
