package search

import (
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/internal/markup"
	"github.com/OCAP2/datamaps/internal/queue"
	"github.com/OCAP2/datamaps/pkg/core"
)

// DefaultScoreThreshold drops matches scoring below it
const DefaultScoreThreshold = -75

// Keyword weights applied when a marker carries no explicit keywords
const (
	LabelWeight       = 1.5
	DescriptionWeight = 0.75
	TitleWeight       = 0.2
)

// Entry is one searchable marker
type Entry struct {
	Marker   *core.Marker
	Owner    string
	Label    string
	Keywords []core.Keyword

	seq int
}

// Result is a ranked match
type Result struct {
	Entry *Entry
	Score float64
}

// Options configures an Index.
type Options struct {
	Threshold float64
	Bus       *events.Bus
}

// Index buffers entries until Commit and answers fuzzy queries over the
// committed ones. A child index mirrors every entry into its parent.
type Index struct {
	mu      sync.RWMutex
	items   []*Entry
	pending *queue.Queue[*Entry]
	seq     int
	opts    Options

	parent *Index
	title  string
}

// New creates a root index
func New(opts Options) *Index {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultScoreThreshold
	}
	return &Index{pending: queue.New[*Entry](), opts: opts}
}

// NewChild creates an index whose entries are also forwarded to parent with
// the panel title as an extra low-weight keyword.
func NewChild(parent *Index, title string, opts Options) *Index {
	idx := New(opts)
	idx.parent = parent
	idx.title = title
	return idx
}

// Eligible reports whether a marker may be indexed at all
func Eligible(m *core.Marker) bool {
	if m.Instance.State != nil && m.Instance.State.Search.OptOut {
		return false
	}
	return m.Group == nil || !m.Group.Config.CannotBeSearched
}

// Keywords derives the weighted, normalised keywords of a marker
func Keywords(m *core.Marker) []core.Keyword {
	var raw []core.Keyword
	state := m.Instance.State
	switch {
	case state != nil && state.Search.Provided():
		raw = state.Search.Keywords
	default:
		raw = []core.Keyword{{Text: markup.ExtractText(m.Label()), Weight: LabelWeight}}
		if state != nil && state.Desc != "" {
			raw = append(raw, core.Keyword{Text: markup.ExtractText(string(state.Desc)), Weight: DescriptionWeight})
		}
	}

	out := make([]core.Keyword, 0, len(raw))
	for _, kw := range raw {
		text := Normalise(kw.Text)
		if text == "" {
			continue
		}
		out = append(out, core.Keyword{Text: text, Weight: kw.Weight})
	}
	return out
}

// Add buffers an entry for m unless the marker opts out of search
func (idx *Index) Add(owner string, m *core.Marker) bool {
	if !Eligible(m) {
		return false
	}
	idx.enqueue(&Entry{
		Marker:   m,
		Owner:    owner,
		Label:    m.Label(),
		Keywords: Keywords(m),
	})
	return true
}

func (idx *Index) enqueue(e *Entry) {
	idx.mu.Lock()
	idx.seq++
	e.seq = idx.seq
	idx.mu.Unlock()
	idx.pending.Push(e)

	if idx.parent == nil {
		return
	}
	cp := *e
	cp.Keywords = append(append([]core.Keyword(nil), e.Keywords...), core.Keyword{Text: Normalise(idx.title), Weight: TitleWeight})
	idx.parent.enqueue(&cp)
}

// Commit makes buffered entries searchable and fires SearchCommit with them.
// A child commits its parent afterwards.
func (idx *Index) Commit() []*Entry {
	batch := idx.pending.Drain()
	idx.mu.Lock()
	idx.items = append(idx.items, batch...)
	idx.mu.Unlock()

	if idx.opts.Bus != nil {
		idx.opts.Bus.Fire(events.SearchCommit, batch)
	}
	if idx.parent != nil {
		idx.parent.Commit()
	}
	return batch
}

// Remove drops every entry of m, committed or pending, here and in parents
func (idx *Index) Remove(m *core.Marker) int {
	n := idx.pending.RemoveFunc(func(e *Entry) bool { return e.Marker == m })
	idx.mu.Lock()
	kept := idx.items[:0]
	for _, e := range idx.items {
		if e.Marker != m {
			kept = append(kept, e)
		}
	}
	n += len(idx.items) - len(kept)
	clear(idx.items[len(kept):])
	idx.items = kept
	idx.mu.Unlock()

	if idx.parent != nil {
		idx.parent.Remove(m)
	}
	return n
}

// Len returns the number of committed entries
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.items)
}

// Pending returns the number of buffered entries
func (idx *Index) Pending() int {
	return idx.pending.Len()
}

// keywordSource flattens every keyword of every entry for fuzzy matching
type keywordSource struct {
	texts   []string
	entry   []int
	weights []float64
}

func (s *keywordSource) String(i int) string { return s.texts[i] }
func (s *keywordSource) Len() int            { return len(s.texts) }

// Query returns up to limit committed entries matching phrase, best first.
// Equal scores keep insertion order. A limit of zero or less means no limit.
func (idx *Index) Query(phrase string, limit int) []Result {
	pattern := Normalise(phrase)
	if pattern == "" {
		return nil
	}

	idx.mu.RLock()
	items := append([]*Entry(nil), idx.items...)
	idx.mu.RUnlock()

	src := &keywordSource{}
	for i, e := range items {
		for _, kw := range e.Keywords {
			if kw.Weight <= 0 {
				continue
			}
			src.texts = append(src.texts, kw.Text)
			src.entry = append(src.entry, i)
			src.weights = append(src.weights, kw.Weight)
		}
	}

	best := make(map[int]float64)
	for _, match := range fuzzy.FindFrom(pattern, src) {
		score := weigh(float64(match.Score), src.weights[match.Index])
		i := src.entry[match.Index]
		if prev, ok := best[i]; !ok || score > prev {
			best[i] = score
		}
	}

	results := make([]Result, 0, len(best))
	for i, score := range best {
		if score < idx.opts.Threshold {
			continue
		}
		results = append(results, Result{Entry: items[i], Score: score})
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Entry.seq < results[b].Entry.seq
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// weigh boosts positive scores and softens negative ones by the same factor
func weigh(score, weight float64) float64 {
	if score >= 0 {
		return score * weight
	}
	return score / weight
}
