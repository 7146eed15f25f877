// Package raster implements the per-frame image stages that turn an engraved
// page into a canonical bilevel frame.
//
// Stages run in this order:
//
//	Flatten    composite transparency onto white
//	Luminance  collapse to a single 8-bit channel
//	DetectContent / Crop   trim blank margins, keeping padding
//	Enhance    invert, then thicken stems and staff lines by dilation
//	Annotate   stamp the frame label
//	Threshold  binarize at a fixed level
//	Resize     area-downscale to the canonical grid
//	Threshold  re-binarize the resize output
//
// Every function allocates a new image and leaves its input untouched.
// Gray images produced here always have their origin at (0, 0).
//
// After [Enhance] the frame is inverted: ink is bright (255) on a dark (0)
// background. [ApplyPolarity] converts the final frame to the requested
// output polarity.
package raster
