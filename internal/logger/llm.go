package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	llmMu  sync.Mutex
	llmLog *log.Logger
)

// SetLLMWriter enables the model transcript log. A nil writer disables it.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

type transcriptSection struct {
	title string
	body  string
}

func writeTranscript(kind, model, purpose string, sections ...transcriptSection) {
	llmMu.Lock()
	out := llmLog
	llmMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[llm]")
	for _, tag := range []string{kind, model, purpose} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("--- ")
		b.WriteString(sec.title)
		b.WriteString(" ---\n")
		b.WriteString(sec.body)
		if !strings.HasSuffix(sec.body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}

// LogLLMRequest records the prompts sent to a model.
func LogLLMRequest(model, purpose, system, user string) {
	writeTranscript("request", model, purpose,
		transcriptSection{title: "SYSTEM", body: system},
		transcriptSection{title: "USER", body: user},
	)
}

// LogLLMResponse records the raw text a model returned.
func LogLLMResponse(model, purpose, raw string) {
	writeTranscript("response", model, purpose, transcriptSection{title: "RAW", body: raw})
}
