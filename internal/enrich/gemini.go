package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"tenderwatch-engine/internal/domain"
)

// Extractor turns an extracted result-document text into structured fields.
type Extractor interface {
	Extract(ctx context.Context, text string) (domain.Enrichment, error)
}

const extractionInstruction = `以下は公共工事・設計業務の入札結果等の文書から抽出したテキストです。
次のJSON形式のみで回答してください。値が文書から読み取れない場合はnullにしてください。
コードブロックや説明文は不要です。

{
  "estimatedPrice": "予定価格または落札価格（通貨単位付きの文字列）またはnull",
  "winningContractor": "落札者・受注者名またはnull",
  "designFirm": "設計事務所・設計者名またはnull",
  "constructionPeriod": "工期（文字列）またはnull",
  "description": "工事・業務概要の一文要約またはnull"
}

文書テキスト:
`

// GeminiExtractor calls the Gemini API with a fixed response-shape
// instruction and parses the reply as that shape.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("enrich: gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("enrich: create gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// truncate long documents: result facts sit in the first pages, and the
// tail of a bundled archive text is boilerplate
const maxPromptChars = 30000

func (g *GeminiExtractor) Extract(ctx context.Context, text string) (domain.Enrichment, error) {
	if r := []rune(text); len(r) > maxPromptChars {
		text = string(r[:maxPromptChars])
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(extractionInstruction+text), nil)
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("enrich: gemini call: %w", err)
	}

	return ParseExtraction(resp.Text())
}

// ParseExtraction parses the model's reply, tolerating enclosing code-fence
// markers. JSON nulls and empty strings both mean "field not found".
func ParseExtraction(reply string) (domain.Enrichment, error) {
	reply = StripCodeFence(reply)
	if reply == "" {
		return domain.Enrichment{}, fmt.Errorf("enrich: empty model reply")
	}

	var e domain.Enrichment
	if err := json.Unmarshal([]byte(reply), &e); err != nil {
		return domain.Enrichment{}, fmt.Errorf("enrich: malformed model reply: %w", err)
	}

	blankToNil := func(p **string) {
		if *p != nil && strings.TrimSpace(**p) == "" {
			*p = nil
		}
	}
	blankToNil(&e.EstimatedPrice)
	blankToNil(&e.WinningContractor)
	blankToNil(&e.DesignFirm)
	blankToNil(&e.ConstructionPeriod)
	blankToNil(&e.Description)

	return e, nil
}

// StripCodeFence removes a ```json ... ``` wrapper when the model adds one.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
