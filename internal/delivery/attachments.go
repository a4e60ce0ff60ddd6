package delivery

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
	"github.com/custodia-labs/mailbridge/internal/graph"
)

// resolveAttachments materialises every attachment descriptor of a queued
// message into an outbound payload attachment. Resolution happens once per
// message; the result is reused for every recipient.
func resolveAttachments(ctx context.Context, files driven.FileStore, renderer driven.DocumentRenderer, msg *domain.QueuedMessage) ([]graph.OutboundAttachment, error) {
	if len(msg.Attachments) == 0 {
		return nil, nil
	}

	out := make([]graph.OutboundAttachment, 0, len(msg.Attachments))
	for _, ref := range msg.Attachments {
		att, err := resolveAttachment(ctx, files, renderer, msg, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}

func resolveAttachment(ctx context.Context, files driven.FileStore, renderer driven.DocumentRenderer, msg *domain.QueuedMessage, ref domain.AttachmentRef) (graph.OutboundAttachment, error) {
	switch {
	case ref.PrintFormat != "":
		refType, refName := ref.RefType, ref.RefName
		if refType == "" {
			refType, refName = msg.ReferenceType, msg.ReferenceName
		}
		if renderer == nil {
			return graph.OutboundAttachment{}, fmt.Errorf("attachment %q needs a document renderer", ref.PrintFormat)
		}
		name, content, err := renderer.RenderPrintFormat(ctx, refType, refName, ref.PrintFormat)
		if err != nil {
			return graph.OutboundAttachment{}, fmt.Errorf("render %s %s: %w", refType, refName, err)
		}
		return graph.NewOutboundAttachment(name, base64.StdEncoding.EncodeToString(content)), nil

	case ref.FileID != "":
		file, err := files.GetFile(ctx, ref.FileID)
		if err != nil {
			return graph.OutboundAttachment{}, fmt.Errorf("load file %s: %w", ref.FileID, err)
		}
		return fileAttachment(file, ref.FileName), nil

	case ref.FileURL != "":
		file, err := files.GetFileByURL(ctx, ref.FileURL)
		if err != nil {
			return graph.OutboundAttachment{}, fmt.Errorf("load file %s: %w", ref.FileURL, err)
		}
		return fileAttachment(file, ref.FileName), nil

	default:
		return graph.OutboundAttachment{}, fmt.Errorf("attachment descriptor names no file")
	}
}

func fileAttachment(file *domain.StoredFile, nameOverride string) graph.OutboundAttachment {
	name := nameOverride
	if name == "" {
		name = file.Name
	}
	return graph.NewOutboundAttachment(name, base64.StdEncoding.EncodeToString(file.Content))
}
