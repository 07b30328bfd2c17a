package model

import "image"

// Frame is one decoded video frame. Index is 1-based and strictly increasing
// within a scan. Image may be reused by the source after the next read.
type Frame struct {
	Index int
	Image image.Image
}
