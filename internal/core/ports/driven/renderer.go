package driven

import "context"

// DocumentRenderer produces a rendered document for "print format"
// attachments, which are generated on demand instead of looked up as stored
// files. The host application supplies the implementation.
type DocumentRenderer interface {
	RenderPrintFormat(ctx context.Context, refType, refName, format string) (name string, content []byte, err error)
}
