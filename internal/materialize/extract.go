package materialize

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// blockPattern matches one file block:
//
//	Path: <path>
//	Code: '''
//	<body>
//	'''
//
// Content: is accepted in place of Code:. The body ends at the nearest
// following ''' so a body containing that sequence is truncated there.
var blockPattern = regexp.MustCompile(`(?s)Path:\s*([^\n]+?)\s*(?:Code|Content):\s*'''(.*?)'''`)

// Block is one path/content unit recovered from a document.
type Block struct {
	Path    string
	Content string
}

// Blocks lazily yields the file blocks of document in order, with path and
// content trimmed of surrounding whitespace.
func Blocks(document string) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		rest := document
		for {
			loc := blockPattern.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			b := Block{
				Path:    strings.TrimSpace(rest[loc[2]:loc[3]]),
				Content: strings.TrimSpace(rest[loc[4]:loc[5]]),
			}
			rest = rest[loc[1]:]
			if !yield(b) {
				return
			}
		}
	}
}

// Summary aggregates the results of one bulk extraction.
type Summary struct {
	Blocks      int
	Written     int
	Identical   int
	Rejected    int
	Failed      int
	Directories int
	Results     []Result
}

// ExtractAndWriteAll writes every block found in document. A document without
// blocks is logged as a warning and yields an empty Summary. Summary.Written
// only counts blocks that touched the filesystem.
func (m *Materializer) ExtractAndWriteAll(document string) Summary {
	var s Summary
	for b := range Blocks(document) {
		r := m.Write(b.Path, b.Content)
		s.Add(r)
	}

	if s.Blocks == 0 {
		m.logger.Warn("no valid file blocks found in document")
		fmt.Fprintln(m.status, "  No file blocks found in document")
		return s
	}

	m.logger.Info("extracted file blocks",
		"blocks", s.Blocks,
		"written", s.Written,
		"identical", s.Identical,
		"rejected", s.Rejected,
		"failed", s.Failed,
		"directories", s.Directories,
	)
	return s
}

// Add counts r into s.
func (s *Summary) Add(r Result) {
	s.Blocks++
	s.Results = append(s.Results, r)
	if r.CreatedDir != "" {
		s.Directories++
	}
	switch r.Outcome {
	case Created, Overwritten:
		s.Written++
	case Identical:
		s.Identical++
	case RejectedEmpty, RejectedUnsafePath:
		s.Rejected++
	case Failed:
		s.Failed++
	}
}

// Merge folds other into s.
func (s *Summary) Merge(other Summary) {
	for _, r := range other.Results {
		s.Add(r)
	}
}
