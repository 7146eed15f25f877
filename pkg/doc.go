// Package pkg provides the core libraries for scoreframes.
//
// # Overview
//
// Scoreframes turns a paginated score into numbered 1-bit bitmaps for a small
// monochrome display (576×136 by default). Each frame shows a few measures,
// cropped to the notation and with stems and staff lines thickened so they
// survive the downscale.
//
// # Architecture
//
// The data flow through a run:
//
//	MusicXML score / PNG pages
//	         ↓
//	   [score] (measure ranges, engraving)
//	         ↓
//	   [raster] (filter, flatten, crop, dilate, label, threshold, resize)
//	         ↓
//	   [quantize] (1-bit BMP, verification)
//	         ↓
//	   frames/0.bmp 1.bmp ... + manifest.json
//
// [pipeline] orchestrates the stages, assigns dense frame indices and writes
// the workspace. [cache] stores engraver output and enhanced frames across
// runs in a file or Redis backend.
//
// # Supporting Packages
//
//   - [errors]: coded errors and option validation
//   - [fonts]: the embedded label font
//   - [observability]: hooks for run, cache and HTTP events
//   - [buildinfo]: version information injected at build time
//
// [score]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/score
// [raster]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/raster
// [quantize]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/quantize
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/errors
// [fonts]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/fonts
// [observability]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/scoreframes/pkg/buildinfo
package pkg
