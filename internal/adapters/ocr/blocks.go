package ocr

import (
	"math"
	"strings"

	"github.com/carriershark/backend/internal/domain/providers"
)

// blockIndex maps block ids to blocks so relationship edges resolve in O(1)
// instead of rescanning the flat result list.
type blockIndex map[string]providers.Block

func buildIndex(blocks []providers.Block) blockIndex {
	idx := make(blockIndex, len(blocks))
	for _, b := range blocks {
		idx[b.ID] = b
	}
	return idx
}

// childrenOf resolves the CHILD relationship ids of a block, dropping ids the
// provider referenced but never delivered.
func (idx blockIndex) childrenOf(b providers.Block) []providers.Block {
	ids := b.Relationships[providers.RelationChild]
	children := make([]providers.Block, 0, len(ids))
	for _, id := range ids {
		if child, ok := idx[id]; ok {
			children = append(children, child)
		}
	}
	return children
}

// valueOf follows a key block's VALUE relationship to its value block
func (idx blockIndex) valueOf(key providers.Block) (providers.Block, bool) {
	for _, id := range key.Relationships[providers.RelationValue] {
		if value, ok := idx[id]; ok {
			return value, true
		}
	}
	return providers.Block{}, false
}

// textOf reconstructs the text of a block from its word and selection-element
// children. Selection elements render as "[X]" or "[ ]".
func (idx blockIndex) textOf(b providers.Block) string {
	var parts []string
	for _, child := range idx.childrenOf(b) {
		switch child.Kind {
		case providers.BlockKindWord:
			if child.Text != "" {
				parts = append(parts, child.Text)
			}
		case providers.BlockKindSelectionElement:
			if child.Selected {
				parts = append(parts, "[X]")
			} else {
				parts = append(parts, "[ ]")
			}
		}
	}
	return strings.Join(parts, " ")
}

func hasEntityType(b providers.Block, entityType string) bool {
	for _, t := range b.EntityTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

// fullText concatenates every LINE block's text in original order
func fullText(blocks []providers.Block) string {
	var lines []string
	for _, b := range blocks {
		if b.Kind == providers.BlockKindLine && b.Text != "" {
			lines = append(lines, b.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// keyValuePairs resolves every KEY_VALUE_SET key block into a (key, value)
// pair. Pairs with an empty key text are dropped. The returned map keeps the
// highest-confidence pairing when a key text repeats.
func keyValuePairs(blocks []providers.Block, idx blockIndex) ([]providers.KeyValuePair, map[string]string) {
	var pairs []providers.KeyValuePair
	best := make(map[string]providers.KeyValuePair)

	for _, b := range blocks {
		if b.Kind != providers.BlockKindKeyValueSet || !hasEntityType(b, "KEY") {
			continue
		}

		keyText := idx.textOf(b)
		if keyText == "" {
			continue
		}

		var valueText string
		if value, ok := idx.valueOf(b); ok {
			valueText = idx.textOf(value)
		}

		pair := providers.KeyValuePair{
			Key:           keyText,
			Value:         valueText,
			KeyConfidence: b.Confidence,
		}
		pairs = append(pairs, pair)

		if existing, ok := best[keyText]; !ok || pair.KeyConfidence > existing.KeyConfidence {
			best[keyText] = pair
		}
	}

	kvMap := make(map[string]string, len(best))
	for k, pair := range best {
		kvMap[k] = pair.Value
	}
	return pairs, kvMap
}

// tables resolves every TABLE block's cells and materializes a dense
// row-major grid. Cells without row/column indexes are kept in the cell list
// but skipped from the grid.
func tables(blocks []providers.Block, idx blockIndex) []providers.Table {
	var result []providers.Table

	for _, b := range blocks {
		if b.Kind != providers.BlockKindTable {
			continue
		}

		var cells []providers.TableCell
		maxRow, maxCol := 0, 0
		for _, child := range idx.childrenOf(b) {
			if child.Kind != providers.BlockKindCell {
				continue
			}
			cell := providers.TableCell{
				Row:        child.RowIndex,
				Column:     child.ColumnIndex,
				RowSpan:    child.RowSpan,
				ColumnSpan: child.ColumnSpan,
				Text:       idx.textOf(child),
				Confidence: child.Confidence,
			}
			cells = append(cells, cell)
			if cell.Row > maxRow {
				maxRow = cell.Row
			}
			if cell.Column > maxCol {
				maxCol = cell.Column
			}
		}

		grid := make([][]string, maxRow)
		for i := range grid {
			grid[i] = make([]string, maxCol)
		}
		for _, cell := range cells {
			if cell.Row >= 1 && cell.Column >= 1 {
				grid[cell.Row-1][cell.Column-1] = cell.Text
			}
		}

		result = append(result, providers.Table{Cells: cells, Grid: grid})
	}

	return result
}

// confidenceSummary averages confidence across LINE blocks, rounded to two
// decimals, on the provider-native 0-100 scale. Average is nil when the
// document has no lines.
func confidenceSummary(blocks []providers.Block) providers.ConfidenceSummary {
	var sum float64
	count := 0
	for _, b := range blocks {
		if b.Kind == providers.BlockKindLine {
			sum += b.Confidence
			count++
		}
	}

	summary := providers.ConfidenceSummary{LineCount: count}
	if count > 0 {
		avg := math.Round(sum/float64(count)*100) / 100
		summary.Average = &avg
	}
	return summary
}

// normalizeBlocks runs the full block-graph normalization over a flat result
// list.
func normalizeBlocks(blocks []providers.Block) (string, []providers.KeyValuePair, map[string]string, []providers.Table, providers.ConfidenceSummary) {
	idx := buildIndex(blocks)
	text := fullText(blocks)
	pairs, kvMap := keyValuePairs(blocks, idx)
	tbls := tables(blocks, idx)
	conf := confidenceSummary(blocks)
	return text, pairs, kvMap, tbls, conf
}
