package models

import "github.com/desertthunder/wrapped/internal/shared"

// ErrSlideOutOfRange is returned by [Presentation.Slide] for pages outside [0, SlideCount).
var ErrSlideOutOfRange = shared.ErrSlideOutOfRange
