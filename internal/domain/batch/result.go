package batch

// ItemStatus is the processing outcome of a single ingested source item.
type ItemStatus string

// Item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusSkipped ItemStatus = "skipped"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of normalizing one source item (a CSV row or a PDF file).
type Result struct {
	source string
	id     string
	status ItemStatus
	err    error
}

// NewOK creates a successful result for the document id produced from source.
func NewOK(source, id string) Result { return Result{source: source, id: id, status: StatusOK} }

// NewSkipped creates a result for an item rejected by validation.
func NewSkipped(source string, err error) Result {
	return Result{source: source, status: StatusSkipped, err: err}
}

// NewError creates a result for an item that could not be read at all.
func NewError(source string, err error) Result {
	return Result{source: source, status: StatusError, err: err}
}

// Source returns the item locator, e.g. "papers.csv:3" or "pdfs/attention.pdf".
func (r Result) Source() string { return r.source }

// ID returns the document identifier, empty unless the item succeeded.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Report aggregates per-item results of one ingestion run.
type Report struct {
	Results []Result
}

// Add appends a result.
func (r *Report) Add(res Result) { r.Results = append(r.Results, res) }

// Count returns the number of results with the given status.
func (r *Report) Count(status ItemStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.status == status {
			n++
		}
	}
	return n
}

// Failures returns the results that did not produce a document.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.status != StatusOK {
			out = append(out, res)
		}
	}
	return out
}
