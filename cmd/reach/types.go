package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIRunSummary describes a finished `reach run`.
type CLIRunSummary struct {
	RunID            string          `json:"run_id,omitempty"`
	Root             string          `json:"root"`
	Output           string          `json:"output"`
	Granularity      string          `json:"granularity"`
	Complete         bool            `json:"complete"`
	FilesIndexed     int             `json:"files_indexed"`
	QueriesProcessed int             `json:"queries_processed"`
	Matches          int             `json:"matches"`
	Waves            int             `json:"waves"`
	ElapsedMS        int64           `json:"elapsed_ms"`
	Files            []CLIFile       `json:"files"`
	Unresolved       []CLIUnresolved `json:"unresolved,omitempty"`
}

// CLIFile is one output file.
type CLIFile struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"`
	Matches int    `json:"matches"`
}

// CLIUnresolved is a seed that produced no query.
type CLIUnresolved struct {
	Symbol string `json:"symbol"`
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// CLIRun is a JSON-friendly run report row.
type CLIRun struct {
	ID          string `json:"id"`
	Root        string `json:"root"`
	Output      string `json:"output,omitempty"`
	Granularity string `json:"granularity,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Started     string `json:"started"`
	Finished    string `json:"finished"`
	Files       int    `json:"files"`
	Queries     int    `json:"queries"`
	Matches     int    `json:"matches"`
	Unresolved  int    `json:"unresolved"`
}

// CLIQuery is one processed query of a recorded run.
type CLIQuery struct {
	Seq      int    `json:"seq"`
	Name     string `json:"name"`
	SymbolID *int64 `json:"symbol_id,omitempty"`
	Origin   string `json:"origin"`
}

// CLIRunReport is the detail view of one recorded run.
type CLIRunReport struct {
	Run        CLIRun          `json:"run"`
	Files      []CLIFile       `json:"files"`
	Queries    []CLIQuery      `json:"queries,omitempty"`
	Unresolved []CLIUnresolved `json:"unresolved,omitempty"`
}
