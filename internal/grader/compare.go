package grader

import (
	"context"

	"github.com/fyrsmithlabs/recur/internal/record"
)

// Compare reports whether challenger strictly beats current.
//
// An unscored current is graded and stored first. The challenger is always
// graded again; the fresh score is stored when the challenger was unscored,
// otherwise its stored score is kept and only the fresh value is compared.
// Compare(x, x) is false under a deterministic grader.
func Compare(ctx context.Context, g Grader, current, challenger *record.Record, prompt string) (bool, error) {
	if !current.Scored() {
		if _, err := Grade(ctx, g, current, prompt); err != nil {
			return false, err
		}
	}
	currentScore, err := current.MustScore()
	if err != nil {
		return false, err
	}

	fresh, err := g.Score(ctx, challenger.Text(), prompt)
	if err != nil {
		return false, err
	}
	if !challenger.Scored() {
		if err := challenger.SetScore(fresh); err != nil {
			return false, err
		}
	}
	return fresh > currentScore, nil
}
