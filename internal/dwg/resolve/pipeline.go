package resolve

import (
	"cmp"
	"slices"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

const component = "resolve"

const (
	streamAliasReads   = 96
	targetedAliasReads = 256
	targetedEndSpan    = 64
	// extraTargets is how many unnamed candidates per INSERT widen pass 2
	extraTargets = 4
	// nearbyNameSpan is the handle distance within which a unique block
	// name is borrowed for an INSERT nothing else named
	nearbyNameSpan = 8
	// maxAdjacency bounds the handle-adjacency fallback
	maxAdjacency = 4
)

// File is the read-only view of one drawing the name pipeline walks
type File struct {
	Strategy *version.Strategy
	Decoder  *entities.Decoder
	// Objects are in object-index order
	Objects []entities.Object
	// Kind maps a type code to its builtin code. Nil means codes are
	// builtin already.
	Kind func(code uint16) uint16
	// Layers holds every LAYER handle
	Layers HandleSet
	// Types maps indexed handles to builtin type codes
	Types map[uint64]uint16
	Sink  diag.Sink
	// Adjacency enables the handle-adjacency fallback for BLOCK and ENDBLK
	// names. Names it produces are flagged Heuristic.
	Adjacency bool
}

// HeaderName is a BLOCK_HEADER handle with its name
type HeaderName struct {
	Handle    uint64 `json:"handle"`
	Name      string `json:"name"`
	Recovered bool   `json:"recovered,omitempty"`
}

// BlockEntityName names a BLOCK or ENDBLK record
type BlockEntityName struct {
	Handle    uint64 `json:"handle"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Heuristic bool   `json:"heuristic,omitempty"`
}

// InsertRef is an INSERT or MINSERT to name, with the block reference the
// canonical decode produced (zero if none)
type InsertRef struct {
	Object entities.Object
	Parsed uint64
}

// InsertName is the resolved block of one INSERT. Pass is 1 when the first
// pass named it and 2 when the targeted alias search was needed.
type InsertName struct {
	Handle      uint64 `json:"handle"`
	BlockHeader uint64 `json:"block_header"`
	Name        string `json:"name"`
	Confidence  uint8  `json:"confidence"`
	Pass        int    `json:"pass"`
}

// Stats counts the work the pipeline did
type Stats struct {
	RecoveredHeaderNames int `json:"recovered_header_names"`
	TargetedSearches     int `json:"targeted_searches"`
	AdjacencyNames       int `json:"adjacency_names"`
	AdjacencyConflicts   int `json:"adjacency_conflicts"`
}

type headerEntry struct {
	raw, decoded uint64
	name         string
	recovered    bool
	// block is the BLOCK entity the record's handle block points at
	block uint64
}

// Names runs the block naming pipeline of one file. It is not safe for
// concurrent use.
type Names struct {
	f     File
	stats Stats

	entries []headerEntry
	// headerNames maps raw and decoded BLOCK_HEADER handles to entry names
	headerNames map[uint64]string
	// known holds raw and decoded BLOCK_HEADER handles
	known HandleSet
	// names extends headerNames with every alias discovered
	names    map[uint64]string
	prepared bool
}

// NewNames creates the pipeline for f
func NewNames(f File) *Names {
	if f.Sink == nil {
		f.Sink = diag.Nop()
	}
	return &Names{f: f}
}

// Stats returns the counters collected so far
func (n *Names) Stats() Stats { return n.stats }

func (n *Names) kind(o entities.Object) uint16 {
	if n.f.Kind == nil {
		return o.Header.TypeCode
	}
	return n.f.Kind(o.Header.TypeCode)
}

func (n *Names) split() bool { return n.f.Strategy.SplitStreams }

func setFirst(m map[uint64]string, h uint64, name string) {
	if name == "" {
		return
	}
	if _, ok := m[h]; !ok {
		m[h] = name
	}
}

// recordHandle is the handle a record stores for itself, falling back to the
// indexed handle
func recordHandle(o entities.Object) uint64 {
	if h, ok := embeddedHandle(o); ok {
		return h
	}
	return o.Handle
}

// headerEntries decodes every BLOCK_HEADER in index order
func (n *Names) headerEntries() []headerEntry {
	if n.entries != nil {
		return n.entries
	}
	s := n.f.Strategy
	n.entries = []headerEntry{}
	for _, o := range n.f.Objects {
		if n.kind(o) != objects.TypeBlockHeader {
			continue
		}
		e := headerEntry{raw: o.Handle, decoded: recordHandle(o)}
		bh, err := n.f.Decoder.BlockHeader(o)
		if err == nil {
			e.name = bh.Name
			e.block = bh.Block
		}
		if e.name == "" && s.StringStream {
			if res, ok := BlockHeaderName(s, o); ok {
				e.name, e.recovered = res.Value, true
			} else if res, ok := BlockRecordName(s, o); ok {
				e.name, e.recovered = res.Value, true
			}
			if e.recovered {
				n.stats.RecoveredHeaderNames++
				diag.Emitf(n.f.Sink, diag.LevelDebug, component,
					diag.Fields{"handle": o.Handle, "name": e.name}, "recovered block header name")
			}
		}
		n.entries = append(n.entries, e)
	}
	n.headerNames = make(map[uint64]string)
	for _, e := range n.entries {
		setFirst(n.headerNames, e.raw, e.name)
		setFirst(n.headerNames, e.decoded, e.name)
	}
	return n.entries
}

// prepare builds the name table INSERT naming reads from: entry names, then
// the aliases found by ownership order, then the handle-stream aliases
func (n *Names) prepare() {
	if n.prepared {
		return
	}
	n.prepared = true
	entries := n.headerEntries()
	n.known = make(HandleSet)
	n.names = make(map[uint64]string)
	for _, e := range entries {
		n.known[e.raw] = struct{}{}
		n.known[e.decoded] = struct{}{}
	}
	for h, name := range n.headerNames {
		n.names[h] = name
	}
	for h, name := range n.ownershipAliases() {
		setFirst(n.names, h, name)
	}
	for h, name := range n.streamAliases() {
		setFirst(n.names, h, name)
	}
}

// ownershipAliases walks the index in order. A BLOCK inherits the name of
// the BLOCK_HEADER before it, under its own handle and the handle it
// stores; a BLOCK with no pending name lends its recovered name to that
// header.
func (n *Names) ownershipAliases() map[uint64]string {
	aliases := make(map[uint64]string)
	var pending string
	var pendingHandle uint64
	for _, o := range n.f.Objects {
		switch n.kind(o) {
		case objects.TypeBlockHeader:
			pending, pendingHandle = n.headerNames[o.Handle], o.Handle
			if pending == "" {
				pending = n.headerNames[recordHandle(o)]
			}
		case objects.TypeBlock:
			if pending == "" {
				if pending = n.blockName(o); pending != "" && pendingHandle != 0 {
					setFirst(aliases, pendingHandle, pending)
				}
			}
			setFirst(aliases, o.Handle, pending)
			setFirst(aliases, recordHandle(o), pending)
		case objects.TypeEndblk:
			pending, pendingHandle = "", 0
		}
	}
	return aliases
}

func streamTypeScore(code uint16, ok bool) int64 {
	if !ok {
		return 48
	}
	switch code {
	case objects.TypeBlock:
		return 0
	case objects.TypeEndblk:
		return 40
	case objects.TypeBlockHeader:
		return 120
	case objects.TypeBlockControl:
		return 160
	case objects.TypeLayer:
		return 240
	default:
		return 80
	}
}

// streamAliases reads the handle stream of every named split-stream
// BLOCK_HEADER and aliases its name to the most plausible block record it
// references. A reference to a handle the index does not know is aliased
// too unless it scores much worse than the best known one.
func (n *Names) streamAliases() map[uint64]string {
	aliases := make(map[uint64]string)
	if !n.split() {
		return aliases
	}
	for _, o := range n.f.Objects {
		if n.kind(o) != objects.TypeBlockHeader {
			continue
		}
		name := n.headerNames[o.Handle]
		if name == "" {
			continue
		}
		canonical, hasCanon := canonicalEnd(o.Header)
		ends := objects.EndBitCandidates(o.Header)
		if len(ends) == 0 && hasCanon {
			ends = []uint64{canonical}
		}
		var known, unknown fold[uint64]
		for _, end := range ends {
			r := o.Record.Reader()
			r.SetBitPos(end)
			for i, v := range r.ReadHandles(o.Handle, bitstream.Absolute, streamAliasReads, 0) {
				if v == 0 || v == o.Handle || n.f.Layers.Has(v) {
					continue
				}
				score := int64(i) * 16
				if hasCanon {
					score += recovery.Distance(canonical, end)
				}
				code, typed := n.f.Types[v]
				score += streamTypeScore(code, typed)
				_, isHeader := n.headerNames[v]
				if isHeader {
					score += 120
				}
				prov := recovery.Provenance{Base: o.Handle, StartBit: end, Delta: delta(end, canonical, hasCanon)}
				if typed || isHeader {
					known.add(v, score, prov)
				} else {
					unknown.add(v, score, prov)
				}
			}
		}
		bestKnown, hasKnown := known.selected()
		if hasKnown {
			setFirst(aliases, bestKnown.Value, name)
		}
		if bestUnknown, ok := unknown.selected(); ok {
			if !hasKnown || bestUnknown.Winner.Score <= bestKnown.Winner.Score+128 {
				setFirst(aliases, bestUnknown.Value, name)
			}
		}
	}
	return aliases
}

// targetedAliases looks for references to targets in the handle stream of
// every named split-stream BLOCK_HEADER. Each target takes the name of the
// header whose reference to it scored best.
func (n *Names) targetedAliases(names map[uint64]string, targets HandleSet) map[uint64]string {
	out := make(map[uint64]string)
	if len(targets) == 0 || !n.split() {
		return out
	}
	n.stats.TargetedSearches++
	type hit struct {
		score int64
		name  string
	}
	best := make(map[uint64]hit)
	for _, o := range n.f.Objects {
		if n.kind(o) != objects.TypeBlockHeader {
			continue
		}
		name := names[o.Handle]
		embedded, hasEmbedded := embeddedHandle(o)
		if name == "" && hasEmbedded {
			name = names[embedded]
		}
		if name == "" {
			continue
		}
		canonical, hasCanon := canonicalEnd(o.Header)
		ends := objects.EndBitCandidates(o.Header)
		if hasCanon {
			ends = append(ends, recovery.Window(canonical, targetedEndSpan, 8)...)
		}
		ends = recovery.SortUnique(ends)
		bases := []uint64{o.Handle}
		if hasEmbedded {
			bases = append(bases, embedded)
		}
		bases = recovery.SortUnique(bases)

		for _, end := range ends {
			for _, base := range bases {
				for _, mode := range []bitstream.HandleMode{bitstream.Absolute, bitstream.Chained} {
					r := o.Record.Reader()
					r.SetBitPos(end)
					for i, v := range r.ReadHandles(base, mode, targetedAliasReads, 0) {
						if v == 0 || !targets.Has(v) {
							continue
						}
						score := int64(i) * 8
						if hasCanon {
							score += recovery.Distance(canonical, end)
						}
						if base != o.Handle {
							score += 12
						}
						if mode == bitstream.Chained {
							score += 8
						}
						if cur, ok := best[v]; !ok || score < cur.score {
							best[v] = hit{score: score, name: name}
						}
					}
				}
			}
		}
	}
	for h, b := range best {
		out[h] = b.name
	}
	return out
}

// HeaderNames returns the named BLOCK_HEADER handles, aliases included,
// sorted by handle
func (n *Names) HeaderNames() []HeaderName {
	n.prepare()
	recovered := make(map[uint64]bool)
	for _, e := range n.entries {
		if e.recovered {
			recovered[e.raw] = true
			recovered[e.decoded] = true
		}
	}
	out := make([]HeaderName, 0, len(n.names))
	for h, name := range n.names {
		out = append(out, HeaderName{Handle: h, Name: name, Recovered: recovered[h]})
	}
	slices.SortFunc(out, func(a, b HeaderName) int { return cmp.Compare(a.Handle, b.Handle) })
	return out
}

// Inserts names every INSERT. Pass 1 recovers each block reference and
// looks its name up. Pass 2 runs only for inserts pass 1 left unnamed: it
// searches the BLOCK_HEADER handle streams for the resolved references,
// then for the best unnamed candidates, and finally borrows a unique name
// from a named handle close to a candidate.
func (n *Names) Inserts(items []InsertRef) []InsertName {
	n.prepare()
	s := n.f.Strategy
	named := make(HandleSet, len(n.names))
	for h := range n.names {
		named[h] = struct{}{}
	}

	out := make([]InsertName, len(items))
	var pending []int
	for i, it := range items {
		res := InsertBlockHandle(s, it.Object, it.Parsed, n.known, named)
		out[i] = InsertName{Handle: it.Object.Handle, BlockHeader: res.Value, Confidence: res.Confidence, Pass: 1}
		if name, ok := n.names[res.Value]; ok && res.Value != 0 {
			out[i].Name = name
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out
	}
	diag.Emitf(n.f.Sink, diag.LevelDebug, component, diag.Fields{"unnamed": len(pending)}, "insert naming second pass")

	targets := make(HandleSet)
	for _, i := range pending {
		if h := out[i].BlockHeader; h != 0 {
			targets[h] = struct{}{}
		}
	}
	for h, name := range n.targetedAliases(n.names, targets) {
		setFirst(n.names, h, name)
	}

	candidates := make(map[int][]uint64)
	extra := make(HandleSet)
	var still []int
	for _, i := range pending {
		out[i].Pass = 2
		if name, ok := n.names[out[i].BlockHeader]; ok && out[i].BlockHeader != 0 {
			out[i].Name = name
			continue
		}
		it := items[i]
		cands := InsertBlockCandidates(s, it.Object, it.Parsed, n.known, DefaultInsertCandidates)
		candidates[i] = cands
		added := 0
		for _, c := range cands {
			if added == extraTargets {
				break
			}
			if _, ok := n.names[c]; ok || c == 0 {
				continue
			}
			extra[c] = struct{}{}
			added++
		}
		still = append(still, i)
	}
	for h, name := range n.targetedAliases(n.names, extra) {
		setFirst(n.names, h, name)
	}

	for _, i := range still {
		cands := candidates[i]
		if name, ok := n.names[out[i].BlockHeader]; ok && out[i].BlockHeader != 0 {
			out[i].Name = name
			continue
		}
		if idx := slices.IndexFunc(cands, func(c uint64) bool { _, ok := n.names[c]; return ok }); idx >= 0 {
			out[i].Name = n.names[cands[idx]]
			continue
		}
		out[i].Name = n.nearbyName(cands)
	}
	return out
}

// nearbyName returns the name of the named handles close to any candidate
// when they all agree on one
func (n *Names) nearbyName(cands []uint64) string {
	found := ""
	for h, name := range n.names {
		near := slices.ContainsFunc(cands, func(c uint64) bool {
			return recovery.Distance(c, h) <= nearbyNameSpan
		})
		if !near {
			continue
		}
		if found != "" && found != name {
			return ""
		}
		found = name
	}
	return found
}

// BlockEntities names every BLOCK and ENDBLK record. Names come from the
// owning BLOCK_HEADER in index order, the header's explicit block link, the
// handle streams of split-stream headers and finally the position of the
// record among its kind. With File.Adjacency set, records still unnamed
// take the name of a BLOCK_HEADER a few handles below them.
func (n *Names) BlockEntities() []BlockEntityName {
	entries := n.headerEntries()
	blocks, endblks := n.blockEntityAliases()

	owner := make(map[uint64]string)
	for _, e := range entries {
		if e.block != 0 {
			setFirst(owner, e.block, e.name)
		}
	}

	var headerOrder []string
	if n.split() {
		for _, e := range entries {
			if e.name != "" {
				headerOrder = append(headerOrder, e.name)
			}
		}
	} else {
		for _, e := range entries {
			name := n.headerNames[e.raw]
			if name == "" {
				name = e.name
			}
			headerOrder = append(headerOrder, name)
		}
	}

	var blockHandles, endHandles []uint64
	for _, o := range n.f.Objects {
		switch n.kind(o) {
		case objects.TypeBlock:
			blockHandles = append(blockHandles, o.Handle)
		case objects.TypeEndblk:
			endHandles = append(endHandles, o.Handle)
		}
	}
	for h, name := range owner {
		setFirst(blocks, h, name)
	}
	if n.split() {
		for h, name := range n.targetedAliases(n.headerNames, NewHandleSet(blockHandles...)) {
			setFirst(blocks, h, name)
		}
		for h, name := range n.targetedAliases(n.headerNames, NewHandleSet(endHandles...)) {
			setFirst(endblks, h, name)
		}
	}
	if len(headerOrder) > 0 {
		n.fillByPosition(blocks, blockHandles, headerOrder)
		n.fillByPosition(endblks, endHandles, headerOrder)
	}

	out := make([]BlockEntityName, 0, len(blockHandles)+len(endHandles))
	for _, group := range []struct {
		typ     string
		handles []uint64
		names   map[uint64]string
	}{
		{"BLOCK", blockHandles, blocks},
		{"ENDBLK", endHandles, endblks},
	} {
		for _, h := range group.handles {
			row := BlockEntityName{Handle: h, Type: group.typ, Name: group.names[h]}
			if n.f.Adjacency {
				n.applyAdjacency(&row)
			}
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b BlockEntityName) int {
		return cmp.Or(cmp.Compare(a.Handle, b.Handle), cmp.Compare(a.Type, b.Type))
	})
	return out
}

// fillByPosition pairs records with header names by position. Revisions
// without split streams pair every record when the counts agree; otherwise
// only unnamed records are filled.
func (n *Names) fillByPosition(names map[uint64]string, handles []uint64, order []string) {
	if !n.split() && len(handles) == len(order) {
		for i, h := range handles {
			if order[i] != "" {
				names[h] = order[i]
			}
		}
		return
	}
	for i, h := range handles {
		if i >= len(order) {
			break
		}
		if names[h] == "" {
			setFirst(names, h, order[i])
		}
	}
}

// applyAdjacency names a row after the BLOCK_HEADER up to maxAdjacency
// handles below it. A row that already has a name is only checked against
// the guess.
func (n *Names) applyAdjacency(row *BlockEntityName) {
	guess := ""
	for k := uint64(1); k <= maxAdjacency && k < row.Handle; k++ {
		if name, ok := n.headerNames[row.Handle-k]; ok {
			guess = name
			break
		}
	}
	if guess == "" {
		return
	}
	if row.Name == "" {
		row.Name, row.Heuristic = guess, true
		n.stats.AdjacencyNames++
		return
	}
	if row.Name != guess {
		n.stats.AdjacencyConflicts++
		diag.Emitf(n.f.Sink, diag.LevelWarn, component,
			diag.Fields{"handle": row.Handle, "owner": row.Name, "adjacent": guess},
			"handle adjacency disagrees with block ownership")
	}
}

// blockEntityAliases walks the index in order, giving each BLOCK the name of
// the preceding BLOCK_HEADER and each ENDBLK the name of its BLOCK. Before
// R2010 the name stored in the BLOCK record itself takes precedence.
func (n *Names) blockEntityAliases() (blocks, endblks map[uint64]string) {
	blocks = make(map[uint64]string)
	endblks = make(map[uint64]string)
	var pending, current string
	for _, o := range n.f.Objects {
		switch n.kind(o) {
		case objects.TypeBlockHeader:
			pending = n.headerNames[o.Handle]
		case objects.TypeBlock:
			recovered := n.blockName(o)
			name := pending
			if !n.split() && recovered != "" {
				name = recovered
			}
			if name == "" {
				name = recovered
			}
			current = name
			setFirst(blocks, o.Handle, name)
			setFirst(blocks, recordHandle(o), name)
		case objects.TypeEndblk:
			name := current
			if name == "" {
				name = pending
			}
			setFirst(endblks, o.Handle, name)
			setFirst(endblks, recordHandle(o), name)
			pending, current = "", ""
		}
	}
	return blocks, endblks
}

// blockName is the name a BLOCK record carries, recovered by scanning on
// split-stream revisions when the canonical read comes back empty
func (n *Names) blockName(o entities.Object) string {
	if b, err := n.f.Decoder.Block(o); err == nil && b.Name != "" {
		return b.Name
	}
	if !n.split() {
		return ""
	}
	if res, ok := BlockRecordName(n.f.Strategy, o); ok {
		return res.Value
	}
	return ""
}
