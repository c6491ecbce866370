package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Qualquer sequência de criações e consultas mantém o snapshot somando o
// total criado, e cada Pix consultado fica terminal.
func TestLifecycle_SnapshotAccountsForEveryPix(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("generated+paid+expired equals issued", prop.ForAll(
		func(issued int, views []int, advances []int) bool {
			store := newFakeStore()
			clk := newClock()
			iss := Issuer{Store: store, Tokens: &seqTokens{}, Now: clk.Now}
			life := Lifecycle{Store: store, Now: clk.Now}
			ctx := context.Background()

			tokens := make([]string, 0, issued)
			for i := 0; i < issued; i++ {
				p, err := iss.Issue(ctx, fmt.Sprintf("owner-%d", i%3), decimal.NewFromInt(int64(i+1)))
				if err != nil {
					return false
				}
				tokens = append(tokens, p.Token)
			}

			viewed := map[string]bool{}
			for i, v := range views {
				if len(tokens) == 0 {
					break
				}
				if i < len(advances) {
					clk.Advance(time.Duration(advances[i]) * time.Minute)
				}
				tok := tokens[v%len(tokens)]
				res, err := life.Resolve(ctx, tok)
				if err != nil || !res.Status().Terminal() {
					return false
				}
				viewed[tok] = true
			}

			snap, err := Stats{Store: store}.Snapshot(ctx, "")
			if err != nil {
				return false
			}
			return snap.Total() == int64(issued) &&
				snap.Paid+snap.Expired == int64(len(viewed))
		},
		gen.IntRange(0, 20),
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.IntRange(0, 6)),
	))

	properties.TestingRun(t)
}
