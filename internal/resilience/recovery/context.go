package recovery

// Segment names a purgeable part of the loop context.
type Segment string

const (
	SegmentExecutionLog Segment = "execution_log"
	SegmentReasoningLog Segment = "reasoning_log"
	SegmentAPIUsage     Segment = "api_usage"
	SegmentConsole      Segment = "console"
)

// LoopContext is the mutable state a loop carries between attempts.
type LoopContext struct {
	ExecutionLog []string       `json:"execution_log"`
	ReasoningLog []string       `json:"reasoning_log"`
	APIUsage     map[string]int `json:"api_usage"`
	Console      []string       `json:"console"`
}

// Clean purges the given segments from lc.
func Clean(lc *LoopContext, segments []Segment) {
	if lc == nil {
		return
	}
	for _, s := range segments {
		switch s {
		case SegmentExecutionLog:
			lc.ExecutionLog = nil
		case SegmentReasoningLog:
			lc.ReasoningLog = nil
		case SegmentAPIUsage:
			lc.APIUsage = nil
		case SegmentConsole:
			lc.Console = nil
		}
	}
}

// LastReasoning returns the most recent reasoning entry, if any.
func (lc *LoopContext) LastReasoning() string {
	if lc == nil || len(lc.ReasoningLog) == 0 {
		return ""
	}
	return lc.ReasoningLog[len(lc.ReasoningLog)-1]
}
