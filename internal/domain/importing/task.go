package importing

type TaskKind string

const (
	TaskAnalyze      TaskKind = "analyze"
	TaskProcessBatch TaskKind = "process_batch"
)

// Task is a unit of asynchronous work. It is written in the same transaction
// as the import transition that produced it. NextRow is the first row of a
// batch that is not recorded yet; zero means the batch has not started.
type Task struct {
	ID          string
	ImportID    string
	Kind        TaskKind
	StartRow    int
	EndRow      int
	NextRow     int
	Attempts    int
	MaxAttempts int
}

func AnalyzeTask(importID string) Task {
	return Task{ImportID: importID, Kind: TaskAnalyze}
}

func BatchTask(importID string, window RowWindow) Task {
	return Task{ImportID: importID, Kind: TaskProcessBatch, StartRow: window.Start, EndRow: window.End}
}

// ResumeRow is where a rerun of the batch picks up.
func (t Task) ResumeRow() int {
	if t.NextRow > t.StartRow {
		return t.NextRow
	}
	return t.StartRow
}

// RowOutcome is one processed row. The repository records it at most once
// per task: the task's NextRow moves past Row in the same transaction as the
// counters.
type RowOutcome struct {
	ImportID string
	TaskID   string
	Row      int
	Success  bool
	Error    *ImportError
}
