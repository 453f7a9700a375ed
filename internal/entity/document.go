package entity

// RawDocument is the caller-owned input of one extraction call.
type RawDocument struct {
	Content  []byte
	Filename string
	MimeType string // bare media type, parameters stripped
	Format   string // constants.PDF | constants.TEXT
}

// ExtractedText is the outcome of text acquisition.
type ExtractedText struct {
	Text     string
	Method   string // constants.Method*
	Success  bool
	Pages    int
	Warnings []string
}
