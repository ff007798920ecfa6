package model

// Record is one row of the tabular source, keyed by the literal column
// header exactly as the source stores it (case and inner whitespace
// preserved). Records have no fixed schema; callers that need a semantic
// field go through the alias resolver or GetField.
type Record map[string]string

// IsEmpty reports whether every cell of the record is blank. The read path
// drops such rows, matching how the source's trailing rows behave.
func (r Record) IsEmpty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// Client is the semantic view of a record used by the lookup endpoints.
type Client struct {
	Name       string `json:"name"`
	Consultant string `json:"consultant"`
	Reseller   string `json:"reseller"`
	Row        Record `json:"row"`
}
