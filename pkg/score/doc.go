// Package score defines the score collaborator consumed by the frame pipeline.
//
// # Overview
//
// A [Score] is opaque to the pipeline: it reports how many measures it has and
// renders any contiguous [MeasureRange] to encoded raster bytes (PNG). Parsing
// notation and drawing it are the collaborator's business; the pipeline only
// slices the score into ranges and post-processes what comes back.
//
// # Measure Ranges
//
// [NewIterator] partitions measures 1..total into ranges of a fixed group
// width. Ranges are contiguous, never overlap and ascend strictly; the last
// range is truncated when the width does not divide the total:
//
//	it, err := score.NewIterator(10, 2)
//	for r, ok := it.Next(); ok; r, ok = it.Next() {
//	    fmt.Println(r) // 1-2, 3-4, 5-6, 7-8, 9-10
//	}
//
// An Iterator is single-use. [Ranges] materialises the same sequence as a
// slice when a caller needs random access (the parallel runner does).
//
// # Implementations
//
//   - [ImageDir]: a directory of pre-rendered PNG pages, one range per file
//   - musicxml.Score: MusicXML documents rendered through an external engraver
//     (see the [musicxml] subpackage)
//
// [musicxml]: github.com/matzehuels/scoreframes/pkg/score/musicxml
package score
