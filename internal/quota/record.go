package quota

// Record holds the cumulative token counters for one user on one calendar
// day. TotalTokens always equals InputTokens + OutputTokens.
type Record struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Merge returns a copy of r with the given token deltas added.
func (r Record) Merge(inputTokens, outputTokens int) Record {
	return Record{
		InputTokens:  r.InputTokens + inputTokens,
		OutputTokens: r.OutputTokens + outputTokens,
		TotalTokens:  r.TotalTokens + inputTokens + outputTokens,
	}
}
