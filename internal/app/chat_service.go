package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"healthshield-ai/internal/ai"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/prompt"
	"healthshield-ai/internal/rag"
	"healthshield-ai/internal/relay"
)

type Retriever interface {
	Retrieve(ctx context.Context, ownerID, question string) ([]rag.Match, error)
}

type GenerationSession interface {
	SendStreaming(ctx context.Context, parts []ai.Part) (ai.DeltaStream, error)
}

// SessionFactory opens a configured generation session per chat turn.
type SessionFactory interface {
	NewSession(cfg ai.SessionConfig) (GenerationSession, error)
}

type clientSessions struct {
	client *ai.Client
}

// NewClientSessions adapts an ai.Client to SessionFactory.
func NewClientSessions(client *ai.Client) SessionFactory {
	return clientSessions{client: client}
}

func (f clientSessions) NewSession(cfg ai.SessionConfig) (GenerationSession, error) {
	session, err := f.client.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

type ChatService struct {
	log         *logger.Logger
	retriever   Retriever
	blobs       BlobStore
	documents   DocumentStore
	sessions    SessionFactory
	safety      []ai.SafetySetting
	relayBuffer int
}

func NewChatService(
	log *logger.Logger,
	retriever Retriever,
	blobs BlobStore,
	documents DocumentStore,
	sessions SessionFactory,
	safety []ai.SafetySetting,
	relayBuffer int,
) *ChatService {
	return &ChatService{
		log:         log.With("service", "ChatService"),
		retriever:   retriever,
		blobs:       blobs,
		documents:   documents,
		sessions:    sessions,
		safety:      safety,
		relayBuffer: relayBuffer,
	}
}

type ChatInput struct {
	OwnerID          string
	History          []model.Turn
	Message          string
	LocalAttachments []model.InlineContent
	StoredFileIDs    []string
}

// StreamChat answers one chat turn into sink. Errors returned before anything
// was written to sink (ErrInvalidInput, ErrMessageEmpty, ErrLLMConfig) leave the
// sink untouched; every later failure is reported in-stream.
func (s *ChatService) StreamChat(ctx context.Context, input ChatInput, sink relay.Sink) error {
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(input.Message) == "" && len(input.LocalAttachments) == 0 && len(input.StoredFileIDs) == 0 {
		return ErrMessageEmpty
	}

	matches, err := s.retriever.Retrieve(ctx, ownerID, input.Message)
	if err != nil {
		s.log.Warn("retrieval failed, answering without excerpts", "owner_id", ownerID, "error", err)
		matches = nil
	}

	req := prompt.Assemble(prompt.Input{
		History:           input.History,
		Message:           input.Message,
		Matches:           matches,
		LocalAttachments:  input.LocalAttachments,
		StoredAttachments: s.loadStored(ctx, ownerID, input.StoredFileIDs),
		Safety:            s.safety,
	})

	session, err := s.sessions.NewSession(req.Session)
	if err != nil {
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return ErrLLMConfig
		}
		return fmt.Errorf("%w: %v", ErrLLMConfig, err)
	}

	stream, err := session.SendStreaming(ctx, req.Parts)
	if err != nil {
		s.log.Error("open generation stream failed", "owner_id", ownerID, "error", err)
		relay.Abort(sink)
		return fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	s.log.Debug("streaming chat response",
		"owner_id", ownerID,
		"matches", len(matches),
		"parts", len(req.Parts),
		"history", len(input.History),
	)
	return relay.NewPipe(s.log, s.relayBuffer).Run(ctx, stream, sink)
}

// loadStored fetches the selected documents fresh from the blob store. Ids
// the owner does not own and unreadable blobs are skipped.
func (s *ChatService) loadStored(ctx context.Context, ownerID string, ids []string) []model.InlineContent {
	if len(ids) == 0 {
		return nil
	}
	docs, err := s.documents.ListByIDsAndOwnerID(ctx, ids, ownerID)
	if err != nil {
		s.log.Warn("load stored attachments failed", "owner_id", ownerID, "error", err)
		return nil
	}
	byID := make(map[string]model.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	out := make([]model.InlineContent, 0, len(docs))
	for _, id := range ids {
		doc, ok := byID[id]
		if !ok {
			continue
		}
		data, err := s.blobs.Get(ctx, doc.StorageKey)
		if err != nil {
			s.log.Warn("read stored attachment failed", "document_id", doc.ID, "error", err)
			continue
		}
		out = append(out, model.InlineContent{
			MimeType: doc.MimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
			Name:     doc.Name,
		})
	}
	return out
}
