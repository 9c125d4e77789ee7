package evaluate

import (
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docassess/internal/textutil"
)

var (
	scoreLabels = strings.NewReplacer("Score: ", "", "score: ", "", "Rating: ", "", "rating: ", "")
	digitsRe    = regexp.MustCompile(`\d+`)
)

// ParseScore returns the first run of decimal digits in answer once the
// score/rating labels are stripped. ok is false when there are none. A run
// too long for an int saturates at math.MaxInt.
func ParseScore(answer string) (score int, ok bool) {
	m := digitsRe.FindString(scoreLabels.Replace(answer))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractScore is ParseScore with a default of 0. A miss is logged, never
// returned as an error.
func ExtractScore(log *slog.Logger, answer string) int {
	score, ok := ParseScore(answer)
	if !ok {
		log.Error("no score in answer", "answer", textutil.Truncate(answer, 200))
		return 0
	}
	return score
}
