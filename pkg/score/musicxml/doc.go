// Package musicxml reads partwise MusicXML scores and renders measure ranges
// through an external engraver.
//
// A [Score] slices every part positionally: measure N is the N-th <measure>
// child of each <part>. [Score.Extract] produces a standalone document for a
// range, carrying the attributes (divisions, key, time, clefs) in effect at
// the first measure so the engraver draws correct clefs and signatures.
//
// Compressed .mxl archives are unpacked using the META-INF/container.xml
// rootfile index.
//
// [MuseScore] is the default [Renderer]; any type with a matching Render
// method can be substituted.
package musicxml
