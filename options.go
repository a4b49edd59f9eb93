package trackstore

import "github.com/hupe1980/trackstore/table"

// Options configures a Tracks reader.
type Options struct {
	// Logger receives structured logs. Defaults to a no-op logger.
	Logger *Logger
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// ExpectedRows optimizes the table for eventually holding this many
	// rows. It is a hint, not a limit.
	ExpectedRows int

	// Compression selects the block codec for the row data.
	Compression table.Codec

	// Logger receives structured logs. Defaults to a no-op logger.
	Logger *Logger
}

// DefaultWriterOptions are the defaults applied by NewWriter.
var DefaultWriterOptions = WriterOptions{
	ExpectedRows: 1000,
	Compression:  table.CodecNone,
}

// WithLogger configures structured logging for a reader.
func WithLogger(l *Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithExpectedRows sets the writer's capacity hint. It is a hint, not a
// limit.
func WithExpectedRows(n int) func(o *WriterOptions) {
	return func(o *WriterOptions) {
		o.ExpectedRows = n
	}
}

// WithCompression selects the block codec for the row data.
func WithCompression(codec table.Codec) func(o *WriterOptions) {
	return func(o *WriterOptions) {
		o.Compression = codec
	}
}

// WithWriterLogger configures structured logging for a writer.
func WithWriterLogger(l *Logger) func(o *WriterOptions) {
	return func(o *WriterOptions) {
		o.Logger = l
	}
}
