// Package prompt assembles the generation request for one chat turn.
package prompt

import (
	"strings"

	"healthshield-ai/internal/ai"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/rag"
)

const (
	MedicalRefusal = "I can't provide a medical diagnosis. Please consult a qualified doctor; I can only help with understanding your health insurance."
	NotFoundAnswer = "I couldn't find this information in your documents."

	knowledgeHeader   = "Relevant excerpts from the user's stored policy documents:"
	excerptSeparator  = "\n\n---\n\n"
	attachmentsPrefix = "[Attached: "
	attachmentsSuffix = "]"
)

// RolePolicy is the fixed system text sent with every chat turn.
var RolePolicy = strings.Join([]string{
	"You are ClaimAdvocate AI, the assistant of the HealthShield AI platform.",
	"You help Indian health insurance policyholders understand their policies, explain claim rejections in plain language, and guide them through appeals.",
	"Refer explicitly to the user's attached documents and to the excerpts below when they are relevant, and name specific clauses such as room rent capping.",
	"Only answer questions about health insurance. Politely decline any other topic.",
	"Never diagnose a medical condition. If asked for a diagnosis, reply with: \"" + MedicalRefusal + "\"",
	"If neither the attached documents nor the excerpts support an answer about the user's policy, reply with: \"" + NotFoundAnswer + "\"",
	"Keep an empathetic, professional tone.",
}, "\n")

type Input struct {
	History           []model.Turn
	Message           string
	Matches           []rag.Match
	LocalAttachments  []model.InlineContent
	StoredAttachments []model.InlineContent
	Safety            []ai.SafetySetting
}

type Request struct {
	Session ai.SessionConfig
	Parts   []ai.Part
}

// Assemble builds the session configuration and the ordered parts of the
// current turn: text, then local attachments, then stored attachments.
func Assemble(in Input) Request {
	parts := make([]ai.Part, 0, 1+len(in.LocalAttachments)+len(in.StoredAttachments))
	if strings.TrimSpace(in.Message) != "" {
		parts = append(parts, ai.TextPart(in.Message))
	}
	for _, a := range in.LocalAttachments {
		parts = append(parts, ai.InlinePart(a.MimeType, a.Data, a.Name))
	}
	for _, a := range in.StoredAttachments {
		parts = append(parts, ai.InlinePart(a.MimeType, a.Data, a.Name))
	}

	return Request{
		Session: ai.SessionConfig{
			SystemPolicy: SystemPolicy(in.Matches),
			Safety:       in.Safety,
			History:      convertHistory(in.History),
		},
		Parts: parts,
	}
}

// SystemPolicy appends the knowledge block to RolePolicy when there are
// matches.
func SystemPolicy(matches []rag.Match) string {
	block := KnowledgeBlock(matches)
	if block == "" {
		return RolePolicy
	}
	return RolePolicy + "\n\n" + block
}

func KnowledgeBlock(matches []rag.Match) string {
	if len(matches) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(matches))
	for _, m := range matches {
		rendered = append(rendered, "[Document: "+m.DocumentName+"]\nExcerpt: "+m.ChunkText)
	}
	return knowledgeHeader + "\n" + strings.Join(rendered, excerptSeparator)
}

func convertHistory(turns []model.Turn) []ai.Turn {
	out := make([]ai.Turn, 0, len(turns))
	for _, t := range turns {
		role, ok := model.NormalizeRole(t.Role)
		if !ok {
			role = model.RoleUser
		}
		text := t.Text
		if role == model.RoleUser && len(t.AttachmentNames) > 0 {
			note := attachmentsPrefix + strings.Join(t.AttachmentNames, ", ") + attachmentsSuffix
			if strings.TrimSpace(text) == "" {
				text = note
			} else {
				text += "\n" + note
			}
		}
		aiRole := ai.RoleUser
		if role == model.RoleAssistant {
			aiRole = ai.RoleAssistant
		}
		out = append(out, ai.Turn{Role: aiRole, Text: text})
	}
	return out
}
