package submission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals/disposalstest"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/scancode"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/submission"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/logger"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/metrics"
)

const userID = "6f1c1d7e-0000-4000-8000-000000000001"

type env struct {
	store *disposalstest.Store
	calc  *award.Calculator
	coord *submission.Coordinator
}

func newEnv(t *testing.T, balance int64) *env {
	t.Helper()
	store := disposalstest.New()
	store.AddAccount(userID, balance)
	calc := award.NewCalculator(pricing.Default())
	return &env{
		store: store,
		calc:  calc,
		coord: submission.New(store, calc, logger.Discard(), time.Second),
	}
}

func (e *env) machine() *registration.Machine {
	return registration.NewMachine(userID, e.calc, e.coord)
}

func (e *env) balance(t *testing.T) int64 {
	t.Helper()
	b, err := e.store.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return b
}

func draft(material, category, qty string) registration.Draft {
	return registration.Draft{
		Site:      scancode.Code{SiteID: "site42"},
		Category:  category,
		Material:  material,
		Quantity:  qty,
		AttemptID: uuid.NewString(),
	}
}

func TestScenarioA_PlasticsPerMass(t *testing.T) {
	e := newEnv(t, 100)
	m := e.machine()

	if ok, err := m.OnScan("ecoponto+::site42::v1"); !ok || err != nil {
		t.Fatalf("OnScan = %v, %v", ok, err)
	}
	if err := m.SelectCategory("Recicláveis Comuns"); err != nil {
		t.Fatal(err)
	}
	if err := m.SelectMaterial("Plásticos"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetQuantity("2,5"); err != nil {
		t.Fatal(err)
	}

	rec, err := m.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.PointsAwarded != 38 {
		t.Fatalf("points = %d, want 38", rec.PointsAwarded)
	}
	if rec.Mass == nil || *rec.Mass != 2.5 || rec.Count != nil {
		t.Fatalf("quantity = %v/%v", rec.Mass, rec.Count)
	}
	if rec.SiteID != "site42" || rec.Status != disposals.StatusPendingValidation {
		t.Fatalf("record = %+v", rec)
	}
	if got := e.balance(t); got != 138 {
		t.Fatalf("balance = %d, want 138", got)
	}
	if m.State() != registration.StateDone {
		t.Fatalf("state = %s", m.State())
	}
	if recs := e.store.Records(userID); len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("ledger = %+v", recs)
	}
}

func TestScenarioB_FurniturePerCount(t *testing.T) {
	e := newEnv(t, 0)
	m := e.machine()
	_, _ = m.OnScan("ecoponto+::site42::v1")
	_ = m.SelectCategory("Móveis e Eletrodomésticos")
	_ = m.SelectMaterial("Móveis")
	_ = m.SetQuantity("3")

	rec, err := m.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.PointsAwarded != 150 || rec.Count == nil || *rec.Count != 3 || rec.Mass != nil {
		t.Fatalf("record = %+v", rec)
	}
	if got := e.balance(t); got != 150 {
		t.Fatalf("balance = %d", got)
	}
}

func TestScenarioC_InvalidQuantity(t *testing.T) {
	for _, qty := range []string{"0", "-1"} {
		t.Run(qty, func(t *testing.T) {
			e := newEnv(t, 10)
			m := e.machine()
			_, _ = m.OnScan("ecoponto+::site42::v1")
			_ = m.SelectCategory("Recicláveis Comuns")
			_ = m.SelectMaterial("Plásticos")
			_ = m.SetQuantity(qty)
			before := m.Snapshot().Draft

			_, err := m.Submit(context.Background())
			if !errors.Is(err, award.ErrInvalidQuantity) {
				t.Fatalf("err = %v, want ErrInvalidQuantity", err)
			}
			snap := m.Snapshot()
			if snap.State != registration.StateEnterQuantity || snap.Draft != before {
				t.Fatalf("snapshot = %+v", snap)
			}
			if e.balance(t) != 10 || e.store.Commits != 0 {
				t.Fatal("store touched by invalid quantity")
			}
		})
	}
}

func TestScenarioD_GarbageScan(t *testing.T) {
	e := newEnv(t, 0)
	m := e.machine()
	ok, err := m.OnScan("garbage")
	if ok || !errors.Is(err, scancode.ErrInvalidFormat) {
		t.Fatalf("OnScan = %v, %v", ok, err)
	}
	if m.State() != registration.StateScanning {
		t.Fatalf("state = %s", m.State())
	}
}

func TestSubmit_RequiresUserAndDraft(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()

	if _, err := e.coord.Submit(ctx, "", draft("Plásticos", "Recicláveis Comuns", "1")); !errors.Is(err, submission.ErrUnauthenticated) {
		t.Fatalf("empty user err = %v", err)
	}
	if _, err := e.coord.Submit(ctx, uuid.NewString(), draft("Plásticos", "Recicláveis Comuns", "1")); !errors.Is(err, submission.ErrUnauthenticated) {
		t.Fatalf("unknown account err = %v", err)
	}

	incomplete := []registration.Draft{
		{},
		draft("", "Recicláveis Comuns", "1"),
		draft("Plásticos", "", "1"),
		draft("Plásticos", "Recicláveis Comuns", " "),
		{Category: "Recicláveis Comuns", Material: "Plásticos", Quantity: "1"},
		{Site: scancode.Code{SiteID: "s"}, Category: "Recicláveis Comuns", Material: "Plásticos", Quantity: "1", AttemptID: "not-a-uuid"},
	}
	for i, d := range incomplete {
		if _, err := e.coord.Submit(ctx, userID, d); !errors.Is(err, submission.ErrIncompleteDraft) {
			t.Errorf("draft %d err = %v, want ErrIncompleteDraft", i, err)
		}
	}
	if e.store.Commits != 0 {
		t.Fatal("store committed a rejected draft")
	}
}

func TestSubmit_CalculatorErrorsPropagate(t *testing.T) {
	e := newEnv(t, 0)
	cases := []struct {
		d    registration.Draft
		want error
	}{
		{draft("Ouro", "Metais preciosos", "1"), award.ErrUnknownMaterial},
		{draft("Plásticos", "Recicláveis Comuns", "abc"), award.ErrInvalidQuantity},
		{draft("Móveis", "Móveis e Eletrodomésticos", "0,2"), award.ErrZeroAward},
	}
	for _, tc := range cases {
		_, err := e.coord.Submit(context.Background(), userID, tc.d)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s/%s err = %v, want %v", tc.d.Material, tc.d.Quantity, err, tc.want)
		}
		if submission.IsRetryable(err) {
			t.Errorf("%v reported retryable", err)
		}
	}
}

func TestSubmit_MaterialOutsideCategory(t *testing.T) {
	e := newEnv(t, 100)
	m := e.machine()
	_, _ = m.OnScan("ecoponto+::site42::v1")
	_ = m.SelectCategory("Pneus")
	_ = m.SelectMaterial("Plásticos")
	_ = m.SetQuantity("2")

	_, err := m.Submit(context.Background())
	if !errors.Is(err, submission.ErrIncompleteDraft) {
		t.Fatalf("err = %v, want ErrIncompleteDraft", err)
	}
	if submission.IsRetryable(err) {
		t.Fatal("category mismatch must not be retryable")
	}
	if m.State() != registration.StateEnterQuantity {
		t.Fatalf("state = %s, want enter_quantity", m.State())
	}
	if got := e.balance(t); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	if recs := e.store.Records(userID); len(recs) != 0 {
		t.Fatalf("ledger = %+v, want empty", recs)
	}

	_, err = e.coord.Submit(context.Background(), userID, draft("Móveis", "Recicláveis Comuns", "1"))
	if !errors.Is(err, submission.ErrIncompleteDraft) {
		t.Fatalf("direct submit err = %v, want ErrIncompleteDraft", err)
	}
}

func TestSubmit_RecordCategoryComesFromRule(t *testing.T) {
	e := newEnv(t, 0)
	rec, err := e.coord.Submit(context.Background(), userID, draft("Pneus Usados", "Pneus", "2"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Category != "Pneus" || rec.MaterialID != "Pneus Usados" || rec.PointsAwarded != 50 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestSubmit_StoreFailureIsRetryable(t *testing.T) {
	e := newEnv(t, 5)
	m := e.machine()
	_, _ = m.OnScan("ecoponto+::site42::v1")
	_ = m.SelectCategory("Resíduos Eletrônicos")
	_ = m.SelectMaterial("Celulares")
	_ = m.SetQuantity("2")

	before := testutil.ToFloat64(metrics.SubmissionFailures.WithLabelValues("store_unavailable"))
	e.store.FailWith = errors.New("connection reset")

	_, err := m.Submit(context.Background())
	if !errors.Is(err, submission.ErrStoreUnavailable) || !submission.IsRetryable(err) {
		t.Fatalf("err = %v, want retryable ErrStoreUnavailable", err)
	}
	if got := testutil.ToFloat64(metrics.SubmissionFailures.WithLabelValues("store_unavailable")); got != before+1 {
		t.Fatalf("failure counter = %v, want %v", got, before+1)
	}
	snap := m.Snapshot()
	if snap.State != registration.StateEnterQuantity || snap.Draft.Quantity != "2" || snap.Draft.AttemptID == "" {
		t.Fatalf("draft not preserved: %+v", snap)
	}
	if e.balance(t) != 5 || len(e.store.Records(userID)) != 0 {
		t.Fatal("failed submission left state behind")
	}

	rec, err := m.Submit(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if rec.ID != snap.Draft.AttemptID || rec.PointsAwarded != 60 {
		t.Fatalf("retry record = %+v", rec)
	}
	if e.balance(t) != 65 {
		t.Fatalf("balance = %d, want 65", e.balance(t))
	}
}

func TestSubmit_ReplayAwardsOnce(t *testing.T) {
	e := newEnv(t, 0)
	d := draft("Metais", "Recicláveis Comuns", "1,5")

	pointsBefore := testutil.ToFloat64(metrics.PointsAwarded)
	first, err := e.coord.Submit(context.Background(), userID, d)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := e.coord.Submit(context.Background(), userID, d)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID || second.PointsAwarded != 30 {
		t.Fatalf("replay returned %+v, first %+v", second, first)
	}
	if e.balance(t) != 30 || len(e.store.Records(userID)) != 1 {
		t.Fatalf("balance = %d records = %d", e.balance(t), len(e.store.Records(userID)))
	}
	if got := testutil.ToFloat64(metrics.PointsAwarded); got != pointsBefore+30 {
		t.Fatalf("points counter = %v, want %v", got, pointsBefore+30)
	}
}

func TestSubmit_AttemptOfAnotherUser(t *testing.T) {
	e := newEnv(t, 0)
	other := uuid.NewString()
	e.store.AddAccount(other, 0)
	d := draft("Vidros", "Recicláveis Comuns", "1")

	if _, err := e.coord.Submit(context.Background(), userID, d); err != nil {
		t.Fatal(err)
	}
	if _, err := e.coord.Submit(context.Background(), other, d); !errors.Is(err, submission.ErrIncompleteDraft) {
		t.Fatalf("err = %v", err)
	}
	if b, _ := e.store.Balance(context.Background(), other); b != 0 {
		t.Fatalf("other balance = %d", b)
	}
}

func TestSubmit_ConcurrentNoLostUpdates(t *testing.T) {
	e := newEnv(t, 0)
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.coord.Submit(context.Background(), userID, draft("Pneus Usados", "Pneus", "1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if got := e.balance(t); got != n*25 {
		t.Fatalf("balance = %d, want %d", got, n*25)
	}
	if got := len(e.store.Records(userID)); got != n {
		t.Fatalf("records = %d, want %d", got, n)
	}
}

func TestSubmit_ConcurrentReplaysOfOneAttempt(t *testing.T) {
	e := newEnv(t, 0)
	d := draft("Computadores", "Resíduos Eletrônicos", "1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.coord.Submit(context.Background(), userID, d); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := e.balance(t); got != 60 {
		t.Fatalf("balance = %d, want 60", got)
	}
	if got := len(e.store.Records(userID)); got != 1 {
		t.Fatalf("records = %d, want 1", got)
	}
}

type stuckStore struct{ disposals.Store }

func (stuckStore) Transactionally(ctx context.Context, _ func(disposals.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmit_TimeoutIsStoreUnavailable(t *testing.T) {
	coord := submission.New(stuckStore{}, award.NewCalculator(pricing.Default()), logger.Discard(), 20*time.Millisecond)
	_, err := coord.Submit(context.Background(), userID, draft("Vidros", "Recicláveis Comuns", "1"))
	if !errors.Is(err, submission.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}
