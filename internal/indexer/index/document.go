package index

// Document is one candidate file of a corpus. ID is a path-like
// identifier; it is expected to be unique but is never used as a key.
type Document struct {
	ID      string `json:"docid"`
	Content string `json:"content"`
}
