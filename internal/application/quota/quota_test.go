package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/service"
)

// memoryLedger 以 request_id 为唯一键的内存流水
type memoryLedger struct {
	mu   sync.Mutex
	rows map[string]*entity.CreditConsumption
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: map[string]*entity.CreditConsumption{}}
}

func (l *memoryLedger) Record(_ context.Context, c *entity.CreditConsumption) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[c.RequestID]; ok {
		return false, nil
	}
	cp := *c
	l.rows[c.RequestID] = &cp
	return true, nil
}

func (l *memoryLedger) GetByRequestID(_ context.Context, requestID string) (*entity.CreditConsumption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[requestID], nil
}

func TestCreditCharger_Idempotent(t *testing.T) {
	ledger := newMemoryLedger()
	charger := NewCreditCharger(ledger, 1, false)
	res := &entity.GenerationResult{RequestID: "req-1", UserID: "u1", WordCount: 512}

	first, err := charger.Charge(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, ChargeResult{Credits: 6}, first)

	second, err := charger.Charge(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 6, second.Credits)

	assert.Len(t, ledger.rows, 1)
}

func TestCreditCharger_ConcurrentRetries(t *testing.T) {
	ledger := newMemoryLedger()
	charger := NewCreditCharger(ledger, 2, false)
	res := &entity.GenerationResult{RequestID: "req-2", UserID: "u1", WordCount: 100}

	var wg sync.WaitGroup
	var mu sync.Mutex
	charged := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := charger.Charge(context.Background(), res)
			if err == nil && !r.Duplicate {
				mu.Lock()
				charged++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, charged)
	assert.Equal(t, 2, ledger.rows["req-2"].Credits)
}

func TestCreditCharger_Credits(t *testing.T) {
	c := NewCreditCharger(newMemoryLedger(), 1, false)
	assert.Equal(t, 0, c.Credits(&entity.GenerationResult{WordCount: 500, Partial: true}))
	assert.Equal(t, 1, c.Credits(&entity.GenerationResult{WordCount: 1}))
	assert.Equal(t, 5, c.Credits(&entity.GenerationResult{WordCount: 500}))

	c = NewCreditCharger(newMemoryLedger(), 1, true)
	assert.Equal(t, 5, c.Credits(&entity.GenerationResult{WordCount: 500, Partial: true}))

	_, err := c.Charge(context.Background(), &entity.GenerationResult{WordCount: 10})
	require.Error(t, err)
}

type fakeUsageRepo struct {
	events []*entity.LLMUsageEvent
	used   int64
	err    error
	start  time.Time
}

func (r *fakeUsageRepo) Create(_ context.Context, e *entity.LLMUsageEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *fakeUsageRepo) GetTokenUsage(_ context.Context, _ string, start, _ time.Time) (int64, error) {
	r.start = start
	return r.used, r.err
}

func TestLLMUsageRecorder(t *testing.T) {
	repo := &fakeUsageRepo{}
	rec := NewLLMUsageRecorder(repo)

	err := rec.Record(context.Background(), service.LLMUsageInput{
		UserID: " u1 ", RequestID: "req", Workflow: "draft", Provider: "openai", Model: "gpt",
		PromptTokens: 10, CompletionTokens: 20, DurationMs: 5,
	})
	require.NoError(t, err)
	require.Len(t, repo.events, 1)
	assert.Equal(t, "u1", repo.events[0].UserID)
	assert.Equal(t, 20, repo.events[0].TokensCompletion)

	assert.Error(t, rec.Record(context.Background(), service.LLMUsageInput{PromptTokens: -1}))

	repo.err = errors.New("db down")
	assert.Error(t, rec.Record(context.Background(), service.LLMUsageInput{}))

	var nilRec *LLMUsageRecorder
	assert.NoError(t, nilRec.Record(context.Background(), service.LLMUsageInput{}))
}

func TestTokenQuotaChecker(t *testing.T) {
	repo := &fakeUsageRepo{used: 900}
	c := NewTokenQuotaChecker(repo, 1000)
	c.now = func() time.Time { return time.Date(2026, 5, 2, 15, 4, 0, 0, time.UTC) }

	used, max, err := c.CheckDailyTokens(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), used)
	assert.Equal(t, int64(1000), max)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), repo.start)

	repo.used = 1000
	_, _, err = c.CheckDailyTokens(context.Background(), "u1")
	var qe TokenQuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "u1", qe.UserID)

	unlimited := NewTokenQuotaChecker(repo, 0)
	_, _, err = unlimited.CheckDailyTokens(context.Background(), "u1")
	assert.NoError(t, err)
}
