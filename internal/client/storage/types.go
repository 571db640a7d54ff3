package storage

// Status classifies the outcome of reading a document file.
type Status int

const (
	// StatusFound means the document was decrypted and decoded.
	StatusFound Status = iota
	// StatusAbsent means no document has been saved.
	StatusAbsent
	// StatusUnreadable means the file exists but could not be read.
	StatusUnreadable
	// StatusCorrupt means the file could not be decrypted or decoded.
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusAbsent:
		return "absent"
	case StatusUnreadable:
		return "unreadable"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of Store.Read.
type Result[T any] struct {
	Status Status
	// Doc is set only when Status is StatusFound.
	Doc T
	// Err holds the cause for StatusUnreadable and StatusCorrupt.
	Err error
}

// Found reports whether the document was read successfully.
func (r Result[T]) Found() bool { return r.Status == StatusFound }
