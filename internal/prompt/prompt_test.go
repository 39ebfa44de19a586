package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/ai"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/rag"
)

func TestAssemblePartOrdering(t *testing.T) {
	req := Assemble(Input{
		Message: "Why was my claim rejected?",
		LocalAttachments: []model.InlineContent{
			{MimeType: "image/jpeg", Data: "L1", Name: "letter.jpg"},
			{MimeType: "application/pdf", Data: "L2", Name: "bill.pdf"},
		},
		StoredAttachments: []model.InlineContent{
			{MimeType: "application/pdf", Data: "S1", Name: "policy.pdf"},
		},
	})

	require.Len(t, req.Parts, 4)
	assert.Equal(t, ai.TextPart("Why was my claim rejected?"), req.Parts[0])
	assert.Equal(t, "L1", req.Parts[1].Data)
	assert.Equal(t, "L2", req.Parts[2].Data)
	assert.Equal(t, "S1", req.Parts[3].Data)
}

func TestAssembleBlankMessageHasNoTextPart(t *testing.T) {
	req := Assemble(Input{
		Message:          "   ",
		LocalAttachments: []model.InlineContent{{MimeType: "application/pdf", Data: "L1"}},
	})
	require.Len(t, req.Parts, 1)
	assert.True(t, req.Parts[0].IsInline())
}

func TestSystemPolicyKnowledgeBlock(t *testing.T) {
	assert.Equal(t, RolePolicy, SystemPolicy(nil))

	policy := SystemPolicy([]rag.Match{
		{DocumentName: "a.pdf", ChunkText: "ROOM RENT CAPPED AT 2000"},
		{DocumentName: "b.pdf", ChunkText: "co-pay 10%"},
	})
	assert.True(t, strings.HasPrefix(policy, RolePolicy+"\n\n"))
	assert.Contains(t, policy, "[Document: a.pdf]\nExcerpt: ROOM RENT CAPPED AT 2000\n\n---\n\n[Document: b.pdf]\nExcerpt: co-pay 10%")
}

func TestRolePolicyCarriesFixedSentences(t *testing.T) {
	assert.Contains(t, RolePolicy, MedicalRefusal)
	assert.Contains(t, RolePolicy, NotFoundAnswer)
	assert.Contains(t, RolePolicy, "Only answer questions about health insurance")
}

func TestAssembleHistoryConversion(t *testing.T) {
	safety := []ai.SafetySetting{{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"}}
	req := Assemble(Input{
		Message: "and now?",
		Safety:  safety,
		History: []model.Turn{
			{Role: "user", Text: "see attached", AttachmentNames: []string{"a.pdf", "b.png"}},
			{Role: "model", Text: "Your policy caps room rent."},
			{Role: "user", AttachmentNames: []string{"c.pdf"}},
		},
	})

	assert.Equal(t, safety, req.Session.Safety)
	assert.Equal(t, []ai.Turn{
		{Role: ai.RoleUser, Text: "see attached\n[Attached: a.pdf, b.png]"},
		{Role: ai.RoleAssistant, Text: "Your policy caps room rent."},
		{Role: ai.RoleUser, Text: "[Attached: c.pdf]"},
	}, req.Session.History)
}
