package validator

// Severity splits business-rule violations into the two classes the
// pipeline cares about: hard failures flip the overall validity, soft
// warnings only annotate the result.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// Violation is one violated business rule.
type Violation struct {
	Message  string
	Severity Severity
}

func hard(msg string) Violation { return Violation{Message: msg, Severity: SeverityHard} }
func soft(msg string) Violation { return Violation{Message: msg, Severity: SeveritySoft} }

// Messages flattens violations to the human-readable strings returned to
// callers, preserving order.
func Messages(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Message)
	}
	return out
}

// HardCount returns the number of hard failures.
func HardCount(violations []Violation) int {
	n := 0
	for _, v := range violations {
		if v.Severity == SeverityHard {
			n++
		}
	}
	return n
}
