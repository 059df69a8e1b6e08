package recursive

import (
	"iter"

	"github.com/w-h-a/doctalk/splitter"
)

type span struct {
	start int
	end   int
}

func (s span) len() int {
	return s.end - s.start
}

type recursiveSplitter struct {
	options    splitter.Options
	separators [][]rune
}

func (s *recursiveSplitter) Split(text string) iter.Seq[splitter.Chunk] {
	return func(yield func(splitter.Chunk) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}

		pieces := s.pieces(runes, span{0, len(runes)}, 0)

		s.merge(runes, pieces, yield)
	}
}

// pieces breaks sp into contiguous spans no longer than the chunk size,
// using the coarsest separator that occurs in sp. Separators stay at the
// end of the left piece.
func (s *recursiveSplitter) pieces(runes []rune, sp span, level int) []span {
	if sp.len() <= s.options.ChunkSize {
		return []span{sp}
	}

	for l := level; l < len(s.separators); l++ {
		cuts := cutAfter(runes, sp, s.separators[l])
		if len(cuts) <= 1 {
			continue
		}

		out := make([]span, 0, len(cuts))
		for _, c := range cuts {
			if c.len() <= s.options.ChunkSize {
				out = append(out, c)
				continue
			}
			out = append(out, s.pieces(runes, c, l+1)...)
		}

		return out
	}

	return s.hardCut(sp)
}

func (s *recursiveSplitter) hardCut(sp span) []span {
	step := s.options.ChunkOverlap
	if step <= 0 {
		step = s.options.ChunkSize
	}

	out := make([]span, 0, sp.len()/step+1)
	for start := sp.start; start < sp.end; start += step {
		end := min(start+step, sp.end)
		out = append(out, span{start, end})
	}

	return out
}

// merge packs consecutive pieces into chunks. Each new chunk is seeded with
// the trailing pieces of the previous one that fit in the overlap.
func (s *recursiveSplitter) merge(runes []rune, pieces []span, yield func(splitter.Chunk) bool) {
	size := s.options.ChunkSize
	overlap := s.options.ChunkOverlap

	var window []span
	total := 0
	index := 0

	emit := func() bool {
		start, end := window[0].start, window[len(window)-1].end
		c := splitter.Chunk{
			Index: index,
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		}
		index++
		return yield(c)
	}

	for _, p := range pieces {
		if total+p.len() > size && len(window) > 0 {
			if !emit() {
				return
			}

			for total > 0 && (total > overlap || total+p.len() > size) {
				total -= window[0].len()
				window = window[1:]
			}
		}

		window = append(window, p)
		total += p.len()
	}

	if len(window) > 0 {
		emit()
	}
}

func cutAfter(runes []rune, sp span, sep []rune) []span {
	if len(sep) == 0 {
		return nil
	}

	var out []span
	start := sp.start

	for i := sp.start; i+len(sep) <= sp.end; {
		if !hasPrefix(runes[i:sp.end], sep) {
			i++
			continue
		}
		end := i + len(sep)
		out = append(out, span{start, end})
		start = end
		i = end
	}

	if start < sp.end {
		out = append(out, span{start, sp.end})
	}

	return out
}

func hasPrefix(runes []rune, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i := range prefix {
		if runes[i] != prefix[i] {
			return false
		}
	}
	return true
}

func NewSplitter(opts ...splitter.Option) splitter.Splitter {
	options := splitter.NewOptions(opts...)

	separators := make([][]rune, 0, len(options.Separators))
	for _, sep := range options.Separators {
		if len(sep) == 0 {
			continue
		}
		separators = append(separators, []rune(sep))
	}

	return &recursiveSplitter{
		options:    options,
		separators: separators,
	}
}
