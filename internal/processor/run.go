package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/archive"
	"github.com/hyperjump/chatgraph/internal/dedup"
	"github.com/hyperjump/chatgraph/internal/extract"
	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/storage"
)

// selected is one input conversation chosen for the run with its input index.
type selected struct {
	index int
	conv  *archive.Conversation
}

// runState is the live graph of one run. It is owned by a single call to run
// and discarded when the run ends.
type runState struct {
	entities      *dedup.EntitySet
	conversations map[string]*models.Conversation
	convOrder     []string
	timeline      map[string]*models.TimelineEntry
	checkpoint    models.Checkpoint

	subset     []selected
	startIndex int
	endIndex   int
	created    int
	removed    int
}

func (p *Processor) run(ctx context.Context, convs []archive.Conversation, mode Mode, emit func(models.Progress)) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	fail := func(phase string, err error) (*Result, error) {
		perr := &PhaseError{Phase: phase, Err: err}
		emit(models.Progress{Phase: models.PhaseFailed, Error: perr.Error(), TotalInFile: len(convs)})
		if p.logger != nil {
			p.logger.Error("processing failed", zap.String("phase", phase), zap.Error(err))
		}
		return nil, perr
	}

	emit(models.Progress{Phase: models.PhaseLoading, TotalInFile: len(convs)})
	st, err := p.load(ctx)
	if err != nil {
		return fail(models.PhaseLoading, err)
	}

	if err := p.selectSubset(ctx, st, convs, mode); err != nil {
		return fail(models.PhaseFiltering, err)
	}
	total := len(st.subset)
	emit(models.Progress{
		Phase: models.PhaseFiltering, Total: total, Percentage: models.Percent(0, total),
		StartIndex: st.startIndex, EndIndex: st.endIndex, TotalInFile: len(convs),
	})

	if total == 0 {
		if p.logger != nil {
			p.logger.Info("nothing to process", zap.Int("total_in_file", len(convs)))
		}
		emit(models.Progress{
			Phase: models.PhaseDone, Percentage: 100, EntitiesFound: st.entities.Len(),
			StartIndex: st.startIndex, EndIndex: st.endIndex, TotalInFile: len(convs),
			AlreadyComplete: true,
		})
		res := st.result()
		res.AlreadyComplete = true
		return res, nil
	}

	for start := 0; start < total; start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return fail(models.PhaseBatching, err)
		}
		end := start + p.batchSize
		if end > total {
			end = total
		}
		for _, sel := range st.subset[start:end] {
			p.processConversation(st, sel)
		}
		emit(models.Progress{
			Phase:              models.PhaseBatching,
			Processed:          end,
			Total:              total,
			Percentage:         models.Percent(end, total),
			EntitiesFound:      st.entities.Len(),
			RecentBatch:        end - start,
			StartIndex:         st.startIndex,
			EndIndex:           st.endIndex,
			CurrentGlobalIndex: st.subset[end-1].index + 1,
			TotalInFile:        len(convs),
		})
	}

	emit(models.Progress{Phase: models.PhaseSparse, Processed: total, Total: total, Percentage: 100})
	st.filterSparse(p.minOccurrences)

	emit(models.Progress{Phase: models.PhaseRelating, Processed: total, Total: total, Percentage: 100})
	st.relate()

	emit(models.Progress{Phase: models.PhasePersisting, Processed: total, Total: total, Percentage: 100})
	snap := st.snapshot()
	history := &models.HistoryRecord{
		StartIndex:             st.startIndex,
		EndIndex:               st.endIndex,
		ConversationsProcessed: total,
		EntitiesFound:          st.entities.Len(),
		Timestamp:              p.now().UTC(),
	}
	snap.History = history
	snap.Settings = &models.Settings{
		Mode:           modeName(mode),
		BatchSize:      p.batchSize,
		MinOccurrences: p.minOccurrences,
		UpdatedAt:      history.Timestamp,
	}
	if _, ok := mode.(Incremental); ok {
		st.checkpoint.ProcessedUpToIndex = st.endIndex
		st.checkpoint.MinOccurrences = p.minOccurrences
		cp := st.checkpoint
		snap.Checkpoint = &cp
	}
	if err := p.store.Commit(ctx, snap); err != nil {
		return fail(models.PhasePersisting, err)
	}

	p.indexConversations(ctx, st)

	if p.logger != nil {
		p.logger.Info("processing complete",
			zap.Int("processed", total),
			zap.Int("entities", st.entities.Len()),
			zap.Int("created", st.created),
			zap.Int("removed", st.removed))
	}
	emit(models.Progress{
		Phase: models.PhaseDone, Processed: total, Total: total, Percentage: 100,
		EntitiesFound: st.entities.Len(), StartIndex: st.startIndex, EndIndex: st.endIndex,
		CurrentGlobalIndex: st.subset[total-1].index + 1, TotalInFile: len(convs),
	})
	res := st.result()
	res.Processed = total
	return res, nil
}

// load reads the stored graph into a fresh run state.
func (p *Processor) load(ctx context.Context) (*runState, error) {
	st := &runState{
		entities:      dedup.NewEntitySet(),
		conversations: make(map[string]*models.Conversation),
		timeline:      make(map[string]*models.TimelineEntry),
	}
	entities, err := p.store.GetAllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	for _, e := range entities {
		st.entities.Add(e)
	}
	convs, err := p.store.GetAllConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	for _, c := range convs {
		st.putConversation(c)
	}
	timeline, err := p.store.GetTimeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	for _, t := range timeline {
		st.timeline[t.Date] = t
	}
	if st.checkpoint, err = p.store.Checkpoint(ctx); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return st, nil
}

// selectSubset picks the conversations the run will process.
func (p *Processor) selectSubset(ctx context.Context, st *runState, convs []archive.Conversation, mode Mode) error {
	switch m := mode.(type) {
	case Incremental:
		stored, err := p.store.ConversationIDs(ctx)
		if err != nil {
			return fmt.Errorf("load conversation ids: %w", err)
		}
		seen := make(map[string]struct{})
		for i := range convs {
			if m.MaxToProcess > 0 && len(st.subset) >= m.MaxToProcess {
				break
			}
			id := convs[i].ID
			if _, ok := stored[id]; ok {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			st.subset = append(st.subset, selected{index: i, conv: &convs[i]})
		}
		st.startIndex = st.checkpoint.ProcessedUpToIndex
		st.endIndex = st.startIndex + len(st.subset)
	case Range:
		start, end := m.bounds(len(convs))
		for i := start; i < end; i++ {
			st.subset = append(st.subset, selected{index: i, conv: &convs[i]})
		}
		st.startIndex, st.endIndex = start, end
	default:
		return fmt.Errorf("unsupported mode %T", mode)
	}
	return nil
}

// processConversation extracts, resolves and records one conversation. An
// extraction failure leaves the conversation recorded with no entities.
func (p *Processor) processConversation(st *runState, sel selected) {
	conv := sel.conv
	ts := conv.Time()
	summary := &models.Conversation{
		ID:        conv.ID,
		Title:     conv.Title,
		Timestamp: ts,
		Date:      models.DateOf(ts),
		Entities:  []string{},
	}

	if conv.Err != nil && p.logger != nil {
		p.logger.Warn("malformed conversation, unreadable parts skipped",
			zap.String("conversation", conv.ID), zap.Int("index", sel.index), zap.Error(conv.Err))
	}

	cands, err := p.extractSafely(conv)
	if err != nil {
		if p.logger != nil {
			level := p.logger.Warn
			if errors.Is(err, extract.ErrNoText) {
				level = p.logger.Debug
			}
			level("extraction failed", zap.String("conversation", conv.ID), zap.Int("index", sel.index), zap.Error(err))
		}
		cands = nil
	}

	for _, c := range cands {
		id, created, err := p.resolver.Resolve(c, conv.ID, ts, st.entities)
		if err != nil {
			if p.logger != nil {
				p.logger.Debug("candidate skipped", zap.String("conversation", conv.ID), zap.Error(err))
			}
			continue
		}
		if created {
			st.created++
		}
		st.entities.Touch(id, conv.ID, ts)
		if !containsID(summary.Entities, id) {
			summary.Entities = append(summary.Entities, id)
		}
	}

	st.putConversation(summary)
	entry, ok := st.timeline[summary.Date]
	if !ok {
		entry = &models.TimelineEntry{Date: summary.Date, Entities: []string{}, Conversations: []string{}}
		st.timeline[summary.Date] = entry
	}
	entry.AddConversation(conv.ID)
	for _, id := range summary.Entities {
		entry.AddEntity(id)
	}
}

// extractSafely runs the extractor, converting a panic into an error.
func (p *Processor) extractSafely(conv *archive.Conversation) (cands []models.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return p.extractor.Extract(conv.Text(), conv.Messages())
}

// indexConversations adds the run's conversations to the full-text index.
// Failures are logged; the graph is already committed.
func (p *Processor) indexConversations(ctx context.Context, st *runState) {
	if p.convIndex == nil {
		return
	}
	for _, sel := range st.subset {
		doc := &keyword.ConversationDoc{
			Title: sel.conv.Title,
			Text:  sel.conv.Text(),
			Date:  models.DateOf(sel.conv.Time()),
		}
		if err := p.convIndex.Index(ctx, sel.conv.ID, doc); err != nil {
			if p.logger != nil {
				p.logger.Warn("conversation index failed", zap.String("conversation", sel.conv.ID), zap.Error(err))
			}
		}
	}
}

func (st *runState) putConversation(c *models.Conversation) {
	if _, ok := st.conversations[c.ID]; !ok {
		st.convOrder = append(st.convOrder, c.ID)
	}
	st.conversations[c.ID] = c
}

// filterSparse drops entities seen fewer than threshold times and removes
// every reference to them.
func (st *runState) filterSparse(threshold int) {
	removed := st.entities.RemoveWhere(func(e *models.Entity) bool {
		return e.Occurrences < threshold
	})
	st.removed = len(removed)
	if len(removed) == 0 {
		return
	}
	for _, c := range st.conversations {
		c.Entities = dedup.FilterIDs(c.Entities, removed)
	}
	for _, t := range st.timeline {
		t.Entities = dedup.FilterIDs(t.Entities, removed)
	}
}

// relate links every pair of entities that share a conversation.
func (st *runState) relate() {
	for _, id := range st.convOrder {
		ids := st.conversations[id].Entities
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				st.entities.Link(ids[i], ids[j])
			}
		}
	}
}

func (st *runState) sortedTimeline() []*models.TimelineEntry {
	out := make([]*models.TimelineEntry, 0, len(st.timeline))
	for _, t := range st.timeline {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (st *runState) orderedConversations() []*models.Conversation {
	out := make([]*models.Conversation, 0, len(st.convOrder))
	for _, id := range st.convOrder {
		out = append(out, st.conversations[id])
	}
	return out
}

// searchIndex maps each token of name and description to entity ids.
func (st *runState) searchIndex() map[string][]string {
	index := make(map[string][]string)
	for _, e := range st.entities.All() {
		for _, tok := range keyword.IndexTokens(e.Name + " " + e.Description) {
			index[tok] = append(index[tok], e.ID)
		}
	}
	return index
}

func (st *runState) snapshot() *storage.Snapshot {
	return &storage.Snapshot{
		Entities:      st.entities.All(),
		Conversations: st.orderedConversations(),
		Timeline:      st.sortedTimeline(),
		SearchIndex:   st.searchIndex(),
	}
}

func (st *runState) result() *Result {
	return &Result{
		Entities:      st.entities.All(),
		Conversations: st.orderedConversations(),
		Timeline:      st.sortedTimeline(),
		Checkpoint:    st.checkpoint,
		Created:       st.created,
		Removed:       st.removed,
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
