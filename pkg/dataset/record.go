// Package dataset writes training pairs to an append-only CSV file and keeps
// the durable set of commits already processed.
package dataset

// Record is one dataset row. Field order is the CSV column order.
type Record struct {
	Repo                 string `csv:"repo"`
	FilePath             string `csv:"file_path"`
	CommitSHA            string `csv:"commit_sha"`
	CommitMessage        string `csv:"commit_message"`
	InputRepresentation  string `csv:"input_representation"`
	OutputRepresentation string `csv:"output_representation"`
	BuggyCode            string `csv:"buggy_code"`
	FixedCode            string `csv:"fixed_code"`
}

// Columns returns the CSV header in order.
func Columns() []string {
	return []string{
		"repo", "file_path", "commit_sha", "commit_message",
		"input_representation", "output_representation",
		"buggy_code", "fixed_code",
	}
}
