package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/futurenest-rag/internal/prompt"
)

const demoNotice = "目前系統正在示範模式中，設定 OPENAI_API_KEY 後即可取得完整的 AI 回答。"

// DemoGenerator answers without a language model by echoing the question
// found in the prompt.
type DemoGenerator struct{}

// NewDemoGenerator creates the demo generator.
func NewDemoGenerator() *DemoGenerator { return &DemoGenerator{} }

func (d *DemoGenerator) Provider() string { return "demo" }
func (d *DemoGenerator) Model() string    { return "echo" }

func (d *DemoGenerator) Generate(_ context.Context, p string) string {
	question, ok := questionOf(p)
	if !ok {
		return "系統正在示範模式中運行。" + demoNotice
	}

	if strings.Contains(p, prompt.SourcesLabel) && !strings.Contains(p, prompt.NoSourcesMarker) {
		return fmt.Sprintf("根據提供的資料，關於「%s」的問題，請參考下方列出的相關條文。%s", question, demoNotice)
	}
	return fmt.Sprintf("關於「%s」的問題，目前沒有找到直接相關的資料，可能需要進一步的法規解釋或諮詢。%s", question, demoNotice)
}

func questionOf(p string) (string, bool) {
	for _, line := range strings.Split(p, "\n") {
		if rest, ok := strings.CutPrefix(line, prompt.QuestionLabel); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

var _ Generator = (*DemoGenerator)(nil)
