package evaluate

import (
	"strings"

	"github.com/dgallion1/docassess/internal/doctree"
)

const (
	taskPreamble = "TASK: You evaluate documents based on evaluation criteria and provide a rating out of 10." +
		"You first provide a number out of 10 for the score then provide feedback based on this evaluation criteria:" +
		"EVALUATION CRITERIA: "

	scoringSuffix = "SCORING: The scoring is out of 10 and you always give a score. For example:  '10 - The document seems complete.'" +
		"Or: '5 - Your document still needs work, for example it is missing contact information. '" +
		"Or: '0 - Your document is not good enough, please revisit. '"
)

// SystemPrompt wraps a rendered rule with the fixed task and scoring text.
func SystemPrompt(rule string) string {
	var sb strings.Builder
	sb.Grow(len(taskPreamble) + len(rule) + len(scoringSuffix))
	sb.WriteString(taskPreamble)
	sb.WriteString(rule)
	sb.WriteString(scoringSuffix)
	return sb.String()
}

// Question is the user turn sent with every rule.
func Question(scope string) string {
	return `Please evaluate this document: "` + scope + `"`
}

// Scope selects the text a rule is judged on. An empty section means the
// whole rendered document; otherwise every node matching section plus its
// subtree, one text per line.
func Scope(tree *doctree.Tree, section string) string {
	if section == "" {
		return tree.Render()
	}
	return tree.JoinText(tree.FindTextWithSubnodes(section))
}

// EstimateTokens gives a rough token count from the word count, used for
// logging prompt sizes.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
