package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/pkg/formulas"
)

// Sentiment scores symbols on crowd behavior proxied by return streaks and
// short-versus-long momentum: a run of up days reads as positive sentiment,
// accelerating declines as negative.
type Sentiment struct {
	log zerolog.Logger
}

// NewSentiment creates the sentiment analysis provider
func NewSentiment(log zerolog.Logger) *Sentiment {
	return &Sentiment{
		log: log.With().Str("component", "analysis_sentiment").Logger(),
	}
}

// Name implements Provider
func (s *Sentiment) Name() string {
	return "sentiment"
}

// Analyze implements Provider
func (s *Sentiment) Analyze(ctx context.Context, actx *Context) (*Report, error) {
	scores := make(map[string]float64, len(actx.Symbols))
	scored := 0

	for _, symbol := range actx.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		closes := actx.History[symbol]
		if len(closes) < 15 {
			continue
		}

		scores[symbol] = s.score(closes)
		scored++
	}

	return &Report{
		Provider: s.Name(),
		Scores:   scores,
		Summary:  fmt.Sprintf("read sentiment for %d of %d symbols from return streaks", scored, len(actx.Symbols)),
	}, nil
}

func (s *Sentiment) score(closes []float64) float64 {
	returns := formulas.Returns(closes)
	if len(returns) < 10 {
		return 0
	}

	// Streak: consecutive same-sign days at the end of the series
	streak := 0
	last := returns[len(returns)-1]
	for i := len(returns) - 1; i >= 0; i-- {
		if (returns[i] > 0) != (last > 0) || returns[i] == 0 {
			break
		}
		streak++
	}

	score := 0.0
	if last > 0 {
		score += float64(streak) * 0.15
	} else {
		score -= float64(streak) * 0.15
	}

	// Recent mood vs the longer mood
	recent := formulas.Mean(returns[len(returns)-5:])
	overall := formulas.Mean(returns)
	score += clamp((recent - overall) * 50)

	return clamp(score)
}
