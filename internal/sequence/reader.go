// Package sequence parses FASTA and FASTQ text into sequence records.
//
// Parsing is line oriented and never fails on content: lines that are not
// pure nucleotide text are dropped, and records left with no sequence are
// not emitted. Only I/O errors from the underlying stream are reported.
package sequence

import (
	"bufio"
	"bytes"
	"io"
	"iter"

	"github.com/ppiankov/taxaformer/internal/model"
)

// maxLine allows long single-line sequences (64 MiB)
const maxLine = 64 * 1024 * 1024

// Options tunes the reader
type Options struct {
	// FASTQMode is model.FASTQLenient (default) or model.FASTQFourLine
	FASTQMode string
}

// Reader yields records lazily from a text stream. It is not restartable.
type Reader struct {
	sc       *bufio.Scanner
	fourLine bool

	open        bool   // a header has been seen and its record is accumulating
	fastq       bool   // current record was introduced by '@'
	skipQuality bool   // four-line mode: next line is a quality string
	id          string // current record id
	seq         []byte

	dropped int
	err     error
	done    bool
}

// NewReader returns a Reader over r
func NewReader(r io.Reader, opts Options) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{
		sc:       sc,
		fourLine: opts.FASTQMode == model.FASTQFourLine,
		seq:      make([]byte, 0, 4096),
	}
}

// Next returns the next record with a non-empty sequence
func (r *Reader) Next() (model.SequenceRecord, bool) {
	if r.done {
		return model.SequenceRecord{}, false
	}

	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}

		// Quality strings may start with '@' or '>', so they are consumed
		// before header detection.
		if r.skipQuality {
			r.skipQuality = false
			continue
		}

		if line[0] == '>' || line[0] == '@' {
			rec, ok := r.finish()
			r.start(line)
			if ok {
				return rec, true
			}
			continue
		}

		if !r.open || r.id == "" {
			continue
		}

		if line[0] == '+' {
			if r.fourLine && r.fastq {
				r.skipQuality = true
			}
			continue
		}

		if isNucleotide(line) {
			r.seq = append(r.seq, line...)
		}
	}

	r.done = true
	r.err = r.sc.Err()
	return r.finish()
}

// All adapts the reader to a range-over-func sequence
func (r *Reader) All() iter.Seq[model.SequenceRecord] {
	return func(yield func(model.SequenceRecord) bool) {
		for {
			rec, ok := r.Next()
			if !ok || !yield(rec) {
				return
			}
		}
	}
}

// Err returns the first I/O error encountered, if any
func (r *Reader) Err() error {
	return r.err
}

// Dropped returns how many records were discarded because no line
// survived filtering
func (r *Reader) Dropped() int {
	return r.dropped
}

func (r *Reader) start(header []byte) {
	r.open = true
	r.fastq = header[0] == '@'
	r.id = parseHeaderID(header[1:])
	r.seq = r.seq[:0]
}

// finish closes the current record. Records without sequence are counted
// and swallowed.
func (r *Reader) finish() (model.SequenceRecord, bool) {
	if !r.open {
		return model.SequenceRecord{}, false
	}
	r.open = false
	r.skipQuality = false
	if r.id == "" || len(r.seq) == 0 {
		r.dropped++
		return model.SequenceRecord{}, false
	}
	return model.SequenceRecord{ID: r.id, Sequence: string(r.seq)}, true
}

// ReadAll drains r into a slice. The second return value is the dropped count.
func ReadAll(r io.Reader, opts Options) ([]model.SequenceRecord, int, error) {
	rd := NewReader(r, opts)
	var records []model.SequenceRecord
	for rec := range rd.All() {
		records = append(records, rec)
	}
	return records, rd.Dropped(), rd.Err()
}

func parseHeaderID(hdr []byte) string {
	fields := bytes.Fields(hdr)
	if len(fields) == 0 {
		return ""
	}
	return string(fields[0])
}

func isNucleotide(line []byte) bool {
	for _, c := range line {
		switch c {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		default:
			return false
		}
	}
	return true
}
