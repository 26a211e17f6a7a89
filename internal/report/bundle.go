package report

// Bundle is one report's full set of local artifacts. It is immutable once
// handed to the delivery workers; nothing in this subsystem ever deletes the
// folder (eviction removes remote messages, never local files).
type Bundle struct {
	// Folder is the bundle's unique directory under the history dir.
	Folder string

	Title string
	Text  string

	// Images are local paths of rendered figures plus copied-in images, in
	// insertion order. Order matters: the first image carries the caption
	// when the bundle is delivered as a media group.
	Images []string

	// Files are non-image attachments copied into the folder.
	Files []string

	// PDFPath points at the assembled document; empty if assembly failed or
	// was disabled.
	PDFPath string
}
