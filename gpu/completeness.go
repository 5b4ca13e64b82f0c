package gpu

// Attachment is what a completeness check needs to know about one
// framebuffer attachment.
type Attachment struct {
	Present bool
	Width   int
	Height  int
	Format  Format
}

// CheckCompleteness applies the framebuffer completeness rules shared by every
// backend: at least one attachment, every referenced attachment alive, color
// slots holding color formats, the depth slot holding a depth format, no more
// than MaxDrawBuffers color slots, and one common size.
func CheckCompleteness(color []Attachment, depth *Attachment) Status {
	if len(color) > MaxDrawBuffers {
		return StatusTooManyAttachments
	}
	if len(color) == 0 && depth == nil {
		return StatusMissingAttachment
	}

	w, h := -1, -1
	same := func(a Attachment) bool {
		if w < 0 {
			w, h = a.Width, a.Height
		}
		return a.Width == w && a.Height == h
	}

	for _, a := range color {
		if !a.Present || a.Width <= 0 || a.Height <= 0 {
			return StatusIncompleteAttachment
		}
		if !a.Format.IsColor() {
			return StatusUnsupported
		}
		if !same(a) {
			return StatusMismatchedSize
		}
	}
	if depth != nil {
		if !depth.Present || depth.Width <= 0 || depth.Height <= 0 {
			return StatusIncompleteAttachment
		}
		if !depth.Format.IsDepth() {
			return StatusUnsupported
		}
		if !same(*depth) {
			return StatusMismatchedSize
		}
	}
	return StatusComplete
}
