package records

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"scanrecon/internal/models"
)

// Batch is the set of complete lines appended to a record file since the
// previous poll.
type Batch struct {
	// Lines holds complete lines without their terminators
	Lines []string

	// FirstLine is the 1-based file line number of Lines[0]
	FirstLine int

	// Reset is set when the file was truncated or replaced since the previous
	// poll and Lines start again from the top of the file
	Reset bool
}

// Tailer reads a record file that another process is still appending to. It
// only ever returns complete lines: a trailing partial line is held back
// until its newline arrives.
type Tailer struct {
	path    string
	info    os.FileInfo
	offset  int64
	partial []byte
	lines   int
}

// NewTailer returns a tailer for path. The file need not exist yet.
func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

// Path returns the file being tailed.
func (t *Tailer) Path() string {
	return t.path
}

// Poll returns the lines completed since the previous call. A file that does
// not exist yet is not an error: Poll returns an empty batch and the caller
// retries later.
func (t *Tailer) Poll() (Batch, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Batch{}, nil
	}
	if err != nil {
		return Batch{}, &models.ReconstructionError{Reason: "error opening record file", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Batch{}, &models.ReconstructionError{Reason: "error reading record file", Err: err}
	}

	var batch Batch
	if t.info != nil && (!os.SameFile(t.info, info) || info.Size() < t.offset) {
		t.offset = 0
		t.partial = nil
		t.lines = 0
		batch.Reset = true
	}
	t.info = info

	if info.Size() == t.offset {
		return batch, nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return Batch{}, &models.ReconstructionError{Reason: "error seeking record file", Err: err}
	}
	data, err := io.ReadAll(io.LimitReader(f, info.Size()-t.offset))
	if err != nil {
		return Batch{}, &models.ReconstructionError{Reason: "error reading record file", Err: err}
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		t.partial = data
		return batch, nil
	}
	t.partial = append([]byte(nil), data[last+1:]...)

	batch.FirstLine = t.lines + 1
	for _, line := range bytes.Split(data[:last], []byte{'\n'}) {
		t.lines++
		batch.Lines = append(batch.Lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
	}
	return batch, nil
}

// Flush returns a held back partial line, for use once the writer has exited
// and no newline will follow.
func (t *Tailer) Flush() (Batch, error) {
	batch, err := t.Poll()
	if err != nil {
		return batch, err
	}
	if len(bytes.TrimSpace(t.partial)) > 0 {
		if len(batch.Lines) == 0 {
			batch.FirstLine = t.lines + 1
		}
		t.lines++
		batch.Lines = append(batch.Lines, string(bytes.TrimSuffix(t.partial, []byte{'\r'})))
	}
	t.partial = nil
	return batch, nil
}
