package session

// MergeReasoningDetails folds an incremental streaming delta into an
// accumulated reasoning_details array, keyed by ID when the provider sends
// one and by Index otherwise (spec.md §9 reasoning-preservation note). A
// matching element's Text/Signature/Type are appended/overwritten in
// place; an unmatched element is appended in order.
func MergeReasoningDetails(acc []ReasoningDetail, delta ReasoningDetail) []ReasoningDetail {
	for i := range acc {
		if detailKeysMatch(acc[i], delta) {
			if delta.Type != "" {
				acc[i].Type = delta.Type
			}
			acc[i].Text += delta.Text
			if delta.Signature != "" {
				acc[i].Signature = delta.Signature
			}
			return acc
		}
	}
	return append(acc, delta)
}

func detailKeysMatch(a, b ReasoningDetail) bool {
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.Index == b.Index
}
