package service

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

// Persona is the fixed instruction text placed at the top of every prompt.
type Persona struct {
	Name     string
	Preamble string
}

const groundingRule = "Answer only from the context below. If the context does not contain the answer, say so plainly instead of guessing."

var personas = map[string]Persona{
	"reader": {
		Name: "reader",
		Preamble: "You answer questions about a book using passages taken from it.\n" +
			groundingRule + "\n" +
			"Keep the answer short and specific.",
	},
	"legal": {
		Name: "legal",
		Preamble: "You are an experienced legislative analyst helping ordinary readers understand a bill.\n" +
			groundingRule + "\n" +
			"Follow these rules:\n" +
			"1. Be accurate. Never invent provisions or details that are not in the context.\n" +
			"2. Explain legal language in everyday terms.\n" +
			"3. When the context only partly answers the question, share what it does cover and suggest a more specific follow-up question.\n" +
			"4. Describe the practical effect of the provisions you cite.\n" +
			"5. Stay neutral and avoid political commentary.\n" +
			"6. Call the legislation \"the bill\" rather than using a number or formal title.\n" +
			"Open with a direct answer when one is possible.",
	},
	"concise": {
		Name:     "concise",
		Preamble: "You are a precise assistant.\n" + groundingRule + "\nReply in at most three sentences.",
	},
}

// DefaultPersona is used when the configuration names none.
const DefaultPersona = "reader"

// LookupPersona returns the named persona.
func LookupPersona(name string) (Persona, error) {
	if name == "" {
		name = DefaultPersona
	}
	p, ok := personas[name]
	if !ok {
		return Persona{}, fmt.Errorf("%w: unknown persona %q", domain.ErrConfiguration, name)
	}
	return p, nil
}

// PersonaNames lists the built-in personas in sorted order.
func PersonaNames() []string {
	names := make([]string, 0, len(personas))
	for n := range personas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PromptInput is everything that goes into one generation request.
type PromptInput struct {
	Persona  Persona
	History  []domain.Turn
	Passages []domain.Match
	Question string
	// MaxSize is the prompt budget in runes; zero disables the limit.
	MaxSize int
	// HistoryTurns bounds how many of the most recent turns are included;
	// a negative value keeps all of them.
	HistoryTurns int
}

// BuildPrompt renders the prompt and returns the passages that made it in.
// Over budget, whole passages are dropped from the lowest score up, then the
// oldest history turns. If the preamble and question alone are too large the
// result is ErrPromptTooLarge.
func BuildPrompt(in PromptInput) (string, []domain.Match, error) {
	passages := append([]domain.Match(nil), in.Passages...)
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })

	history := recentHistory(in.History, in.HistoryTurns)
	for {
		prompt := render(in.Persona.Preamble, history, passages, in.Question)
		if in.MaxSize <= 0 || utf8.RuneCountInString(prompt) <= in.MaxSize {
			return prompt, passages, nil
		}
		switch {
		case len(passages) > 0:
			passages = passages[:len(passages)-1]
		case len(history) > 0:
			history = history[1:]
		default:
			return "", nil, fmt.Errorf("%w: %d runes exceed the budget of %d", domain.ErrPromptTooLarge, utf8.RuneCountInString(prompt), in.MaxSize)
		}
	}
}

// recentHistory keeps the last n turns, skipping failure notices.
func recentHistory(turns []domain.Turn, n int) []domain.Turn {
	kept := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Failed {
			continue
		}
		kept = append(kept, t)
	}
	if n >= 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

func render(preamble string, history []domain.Turn, passages []domain.Match, question string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(preamble))
	b.WriteString("\n\n")
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			speaker := "User"
			if t.Role == domain.RoleAssistant {
				speaker = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, strings.TrimSpace(t.Text))
		}
		b.WriteString("\n")
	}
	b.WriteString("Context:\n")
	if len(passages) == 0 {
		b.WriteString("(no relevant passages were found)\n")
	}
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(p.Text))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer:", strings.TrimSpace(question))
	return b.String()
}
