package batch

// Chunk size bounds imposed by the Geoapify batch API.
const (
	MinBatchLen = 2
	MaxBatchLen = 1000
)

// Item is the parameter record of one query, e.g. {"text": "..."} or
// {"lat": 52.5, "lon": 13.4}. It is sent to the service as {"params": item}.
type Item map[string]any

// Chunk is a contiguous slice of the caller's inputs submitted as one job.
type Chunk struct {
	// Index is the chunk's position in submission order.
	Index int

	// Start and End delimit the chunk in the original inputs: [Start, End).
	Start int
	End   int

	Items []Item
}

// Len returns the number of items in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// ClampBatchLen limits a requested chunk size to [MinBatchLen, MaxBatchLen].
func ClampBatchLen(batchLen int) int {
	if batchLen < MinBatchLen {
		return MinBatchLen
	}
	if batchLen > MaxBatchLen {
		return MaxBatchLen
	}
	return batchLen
}

// Partition splits items into ceil(len(items)/batchLen) contiguous chunks
// after clamping batchLen. Only the last chunk may be shorter.
func Partition(items []Item, batchLen int) ([]Chunk, error) {
	if len(items) == 0 {
		return nil, invalidArgument("no inputs to partition")
	}
	if batchLen <= 0 {
		return nil, invalidArgument("batch length must be positive (got %d)", batchLen)
	}

	size := ClampBatchLen(batchLen)
	chunks := make([]Chunk, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Items: items[start:end:end],
		})
	}

	return chunks, nil
}
