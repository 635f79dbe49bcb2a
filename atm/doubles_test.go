package atm_test

import (
	"context"
	"fmt"

	"github.com/alovak/atm-playground/atm/models"
)

// recorder collects calls from all test doubles in the order they happen.
type recorder struct {
	calls []call
}

type call struct {
	name  string
	token models.AuthenticationToken
	money models.Money
	notes []models.Banknote
	card  models.Card
}

func (r *recorder) names() []string {
	names := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		names = append(names, c.name)
	}
	return names
}

func (r *recorder) count(name string) int {
	n := 0
	for _, c := range r.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (r *recorder) find(name string) []call {
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type fakeCardProvider struct {
	rec   *recorder
	token models.AuthenticationToken
	err   error
}

func (f *fakeCardProvider) Authorize(_ context.Context, card models.Card) (models.AuthenticationToken, error) {
	f.rec.calls = append(f.rec.calls, call{name: "authorize", card: card})
	if f.err != nil {
		return models.AuthenticationToken{}, f.err
	}
	return f.token, nil
}

type fakeBank struct {
	rec       *recorder
	startErr  error
	chargeErr error
	commitErr error
	abortErr  error
	panicOn   string
	// abortCtxErr is the state of the context Abort was called with
	abortCtxErr error
}

func (f *fakeBank) StartTransaction(_ context.Context, token models.AuthenticationToken) error {
	f.rec.calls = append(f.rec.calls, call{name: "start", token: token})
	return f.startErr
}

func (f *fakeBank) Charge(_ context.Context, token models.AuthenticationToken, money models.Money) error {
	f.rec.calls = append(f.rec.calls, call{name: "charge", token: token, money: money})
	if f.panicOn == "charge" {
		panic("ledger exploded")
	}
	return f.chargeErr
}

func (f *fakeBank) Abort(ctx context.Context, token models.AuthenticationToken) error {
	f.rec.calls = append(f.rec.calls, call{name: "abort", token: token})
	f.abortCtxErr = ctx.Err()
	return f.abortErr
}

func (f *fakeBank) Commit(_ context.Context, token models.AuthenticationToken) error {
	f.rec.calls = append(f.rec.calls, call{name: "commit", token: token})
	return f.commitErr
}

type fakeDepot struct {
	rec       *recorder
	err       error
	onRelease func()
}

func (f *fakeDepot) ReleaseBanknotes(_ context.Context, banknotes []models.Banknote) error {
	notes := make([]models.Banknote, len(banknotes))
	copy(notes, banknotes)
	f.rec.calls = append(f.rec.calls, call{name: "release", notes: notes})
	if f.onRelease != nil {
		f.onRelease()
	}
	return f.err
}

var errLedgerDown = fmt.Errorf("ledger unreachable")
