// Package extract walks a content hierarchy into flat per-topic text
// blobs.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dmaranges/studycoach/internal/source"
	"github.com/dmaranges/studycoach/pkg/models"
)

// StructuralError indicates a cycle in the source hierarchy. The
// hierarchy is acyclic by contract, so this aborts extraction instead
// of looping.
type StructuralError struct {
	NodeID string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("cycle detected at node %s", e.NodeID)
}

// BoundaryFunc decides whether a node at the given depth starts its
// own topic. Non-boundary nodes fold their text into the nearest
// ancestor topic.
type BoundaryFunc func(node *source.Node, depth int) bool

// BoundaryUpTo marks every node at depth <= d as a topic boundary.
func BoundaryUpTo(d int) BoundaryFunc {
	return func(_ *source.Node, depth int) bool {
		return depth <= d
	}
}

// Extractor produces Topics from a TreeSource.
type Extractor struct {
	src      source.TreeSource
	maxDepth int
	boundary BoundaryFunc
}

// New creates an Extractor. Nodes deeper than maxDepth are excluded
// from both topic discovery and topic content.
func New(src source.TreeSource, maxDepth int, boundary BoundaryFunc) *Extractor {
	return &Extractor{src: src, maxDepth: maxDepth, boundary: boundary}
}

// Extract walks the tree from rootID depth-first and returns the
// reachable Topics. Unreadable subtrees are skipped and reported in
// the diagnostics list; depth-bound exclusions are silent. Topic
// identifiers are the node identifiers, so they stay stable across
// runs for the same corpus state.
func (e *Extractor) Extract(ctx context.Context, rootID string) ([]models.Topic, []models.Diagnostic, error) {
	w := &walker{
		src:      e.src,
		maxDepth: e.maxDepth,
		boundary: e.boundary,
	}

	if _, err := w.visit(ctx, rootID, 0, map[string]bool{}); err != nil {
		return nil, nil, err
	}
	return w.topics, w.diags, nil
}

type walker struct {
	src      source.TreeSource
	maxDepth int
	boundary BoundaryFunc
	topics   []models.Topic
	diags    []models.Diagnostic
}

// subtree is the text contribution of one visited node, labeled with
// its title so parents can mark folded sections.
type subtree struct {
	title string
	text  string
}

func (w *walker) visit(ctx context.Context, id string, depth int, path map[string]bool) (subtree, error) {
	if depth > w.maxDepth {
		log.Debug().Str("node", id).Int("depth", depth).Msg("Skipping node beyond depth bound")
		return subtree{}, nil
	}
	if path[id] {
		return subtree{}, &StructuralError{NodeID: id}
	}

	node, err := w.src.Node(ctx, id)
	if err != nil {
		log.Warn().Str("node", id).Err(err).Msg("Subtree unreadable, skipping")
		w.diags = append(w.diags, models.Diagnostic{
			Stage:   models.StageExtract,
			TopicID: id,
			Err:     err.Error(),
		})
		return subtree{}, nil
	}

	path[id] = true
	defer delete(path, id)

	var parts []string
	if node.Text != "" {
		parts = append(parts, node.Text)
	}

	for _, childID := range node.Children {
		child, err := w.visit(ctx, childID, depth+1, path)
		if err != nil {
			return subtree{}, err
		}
		if child.text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", child.title, child.text))
	}

	content := strings.Join(parts, "\n")

	if w.boundary(node, depth) {
		w.topics = append(w.topics, models.Topic{
			ID:      node.ID,
			Title:   node.Title,
			Content: content,
			Depth:   depth,
		})
	}

	return subtree{title: node.Title, text: content}, nil
}
