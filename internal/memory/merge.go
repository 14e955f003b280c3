package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/prompts"
)

func (c *Consolidator) apply(ctx context.Context, projectID string, in Insight, sum *Summary) error {
	notes, err := c.notes.ListNotes(ctx, projectID, in.Category)
	if err != nil {
		return fmt.Errorf("list %s notes: %w", in.Category, err)
	}

	if n := findRecorded(notes, in.Text); n != nil {
		sum.Unchanged++
		sum.Details = append(sum.Details, fmt.Sprintf("already recorded in note %s (%s)", n.ID, in.Category))
		return nil
	}

	vec, err := c.vectors.Embed(ctx, in.Text)
	if err != nil {
		vec = nil
	}
	best, score := Closest(vec, in.Text, notes)

	switch {
	case best != nil && score >= c.cfg.MergeThreshold:
		target := consolidatedNote(notes)
		if target == nil {
			target = best
		}
		if contradicts, reason := c.contradicts(ctx, in, target); contradicts {
			n, err := c.create(ctx, projectID, in, vec)
			if err != nil {
				return err
			}
			sum.Conflicts++
			sum.Created++
			sum.NoteIDs = append(sum.NoteIDs, n.ID)
			sum.Details = append(sum.Details, fmt.Sprintf("conflicts with note %s, created note %s (%s): %s", target.ID, n.ID, in.Category, reason))
			return nil
		}
		if err := c.merge(ctx, target, in); err != nil {
			return err
		}
		sum.Merged++
		sum.NoteIDs = append(sum.NoteIDs, target.ID)
		sum.Details = append(sum.Details, fmt.Sprintf("merged into note %s (%s) as section v%d", target.ID, in.Category, target.Version()))

	default:
		n, err := c.create(ctx, projectID, in, vec)
		if err != nil {
			return err
		}
		sum.Created++
		sum.NoteIDs = append(sum.NoteIDs, n.ID)
		if best == nil || score < c.cfg.CreateThreshold {
			sum.NewTopics++
			sum.Details = append(sum.Details, fmt.Sprintf("created note %s (%s), new topic", n.ID, in.Category))
		} else {
			sum.Details = append(sum.Details, fmt.Sprintf("created note %s (%s)", n.ID, in.Category))
		}
	}
	return nil
}

// Closest returns the note most similar to the insight: cosine when both
// sides have vectors, token Jaccard otherwise.
func Closest(vec []float32, text string, notes []*model.Note) (*model.Note, float64) {
	var best *model.Note
	bestScore := -1.0
	for _, n := range notes {
		var s float64
		if len(vec) > 0 && len(n.Embedding) == len(vec) {
			s = embedding.Cosine(vec, n.Embedding)
		} else {
			s = Jaccard(text, n.FullText())
		}
		if s > bestScore {
			best, bestScore = n, s
		}
	}
	return best, bestScore
}

// Jaccard is the overlap of the word sets of a and b.
func Jaccard(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if sb[w] {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range embedding.Tokenize(s) {
		set[w] = true
	}
	return set
}

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// findRecorded returns the note that already holds text as its body or as a section.
func findRecorded(notes []*model.Note, text string) *model.Note {
	want := normalizeContent(text)
	for _, n := range notes {
		if normalizeContent(n.Content) == want {
			return n
		}
		for _, s := range n.Sections {
			if normalizeContent(s.Content) == want {
				return n
			}
		}
	}
	return nil
}

func consolidatedNote(notes []*model.Note) *model.Note {
	for _, n := range notes {
		if n.Consolidated {
			return n
		}
	}
	return nil
}

// merge appends the insight as a new section. Existing sections are never modified.
func (c *Consolidator) merge(ctx context.Context, n *model.Note, in Insight) error {
	n.Consolidated = true
	n.Sections = append(n.Sections, model.Section{
		Name:      sectionName(n, in),
		Content:   in.Text,
		CreatedAt: c.now(),
		Version:   n.Version() + 1,
	})
	if vec, err := c.vectors.Embed(ctx, n.FullText()); err == nil {
		n.Embedding = vec
	}
	if err := c.notes.UpdateNote(ctx, n); err != nil {
		return fmt.Errorf("merge into note %s: %w", n.ID, err)
	}
	return nil
}

func sectionName(n *model.Note, in Insight) string {
	base := strings.TrimSpace(in.Title)
	if base == "" {
		words := strings.Fields(in.Text)
		if len(words) > 6 {
			words = words[:6]
		}
		base = strings.Join(words, " ")
	}
	taken := make(map[string]bool, len(n.Sections))
	for _, s := range n.Sections {
		taken[s.Name] = true
	}
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s (%d)", base, i)
	}
	return name
}

func (c *Consolidator) create(ctx context.Context, projectID string, in Insight, vec []float32) (*model.Note, error) {
	n := &model.Note{
		ProjectID: projectID,
		Category:  in.Category,
		Content:   in.Text,
		Embedding: vec,
	}
	if err := c.notes.CreateNote(ctx, n); err != nil {
		return nil, fmt.Errorf("create %s note: %w", in.Category, err)
	}
	return n, nil
}

// contradicts asks the backend whether in conflicts with n. Any failure
// counts as no conflict.
func (c *Consolidator) contradicts(ctx context.Context, in Insight, n *model.Note) (bool, string) {
	system := c.registry.MustLatest(prompts.ConflictID).Content
	msgs := []engine.ChatMessage{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: fmt.Sprintf("<note>\n%s\n</note>\n<statement>\n%s\n</statement>", n.FullText(), in.Text)},
	}
	var out struct {
		Contradicts bool   `json:"contradicts"`
		Reason      string `json:"reason"`
	}
	if err := c.call.Do(ctx, "conflict", msgs, &out); err != nil {
		c.logger.Debug("conflict check unavailable", zap.String("note", n.ID), zap.Error(err))
		c.hooks.OnFallback(ctx, "conflict_check", err)
		return false, ""
	}
	return out.Contradicts, out.Reason
}
