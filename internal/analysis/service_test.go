package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"trustcheck-backend/internal/corpus"
	"trustcheck-backend/internal/llm"
	"trustcheck-backend/internal/registry"
)

// scriptedLLM routes each stage's completion by the marker its system prompt
// carries. Zero-value fields fall back to echoing the user prompt.
type scriptedLLM struct {
	cleanResp string
	cleanErr  error
	stockResp string
	stockErr  error
	claimResp string
	claimErr  error
	synthResp string
	synthErr  error
}

func (s *scriptedLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch {
	case strings.Contains(systemPrompt, llm.StockListMarker):
		if s.stockErr != nil {
			return "", s.stockErr
		}
		return s.stockResp, nil
	case strings.Contains(systemPrompt, llm.ClaimListMarker):
		if s.claimErr != nil {
			return "", s.claimErr
		}
		return s.claimResp, nil
	case strings.Contains(systemPrompt, "리포트"):
		if s.synthErr != nil {
			return "", s.synthErr
		}
		if s.synthResp == "" {
			return "종합 리포트", nil
		}
		return s.synthResp, nil
	default:
		if s.cleanErr != nil {
			return "", s.cleanErr
		}
		if s.cleanResp == "" {
			return userPrompt, nil
		}
		return s.cleanResp, nil
	}
}

type countingSearcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newCountingSearcher() *countingSearcher {
	return &countingSearcher{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (s *countingSearcher) Search(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	s.calls[query]++
	s.mu.Unlock()
	if s.fail[query] {
		return "", errors.New("search backend unavailable")
	}
	return "결과: " + query, nil
}

func (s *countingSearcher) callCount(query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[query]
}

func (s *countingSearcher) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

type stubChecker struct {
	failFor map[string]bool
}

func (c *stubChecker) CheckStock(ctx context.Context, name string) (registry.StockCheck, error) {
	if c.failFor[name] {
		return registry.StockCheck{}, errors.New("registry lookup failed")
	}
	return registry.StockCheck{Name: name, Listed: true}, nil
}

type stubRetriever struct {
	matches []corpus.Match
	err     error
}

func (r *stubRetriever) Query(ctx context.Context, text string, topK int) ([]corpus.Match, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.matches, nil
}

const testScript = "오늘은 삼성전자 이야기를 해보겠습니다. 최근 거래량이 크게 늘었고 실적도 좋아지고 있습니다. 투자의 책임은 본인에게 있습니다."

func setupService(t *testing.T, llmStub *scriptedLLM, searcher *countingSearcher) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:      repo,
		LLM:       llmStub,
		Searcher:  searcher,
		Registry:  &stubChecker{},
		Retriever: &stubRetriever{},
		Now:       func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) },
	}
	return svc, repo
}

func createJob(t *testing.T, repo *MemoryRepo, uploadDate time.Time) Job {
	t.Helper()
	job := Job{
		ID:          "job-1",
		Script:      testScript,
		UploadDate:  uploadDate,
		ChannelName: "테스트채널",
		Status:      StatusCreated,
		Step:        StepCreated,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestPipelineCompletesWithResult(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n삼성전자",
		claimResp: "---CLAIMS---\n삼성전자 주가가 급등했습니다",
		synthResp: "신뢰도 평가 결과입니다",
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	job := createJob(t, repo, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %s", got.Status)
	}
	if got.Progress != ProgressCompleted {
		t.Fatalf("expected progress 100, got %d", got.Progress)
	}
	if got.Result == nil {
		t.Fatalf("expected result on completed job")
	}
	if got.ErrorMessage != nil {
		t.Fatalf("expected no error message, got %q", *got.ErrorMessage)
	}
	if got.Result.Summary != "신뢰도 평가 결과입니다" {
		t.Fatalf("unexpected summary: %q", got.Result.Summary)
	}
	if len(got.Result.Stocks.Stocks) != 1 || got.Result.Stocks.Stocks[0] != "삼성전자" {
		t.Fatalf("unexpected stocks: %v", got.Result.Stocks.Stocks)
	}
}

func TestPipelineSynthesisFailureMarksError(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n없음",
		claimResp: "---CLAIMS---\n없음",
		synthErr:  errors.New("model overloaded"),
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	job := createJob(t, repo, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusError {
		t.Fatalf("expected status error, got %s", got.Status)
	}
	if got.Result != nil {
		t.Fatalf("expected no result on errored job")
	}
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Fatalf("expected error message on errored job")
	}
}

func TestCleaningFailureFallsBackToOriginal(t *testing.T) {
	llmStub := &scriptedLLM{
		cleanErr:  errors.New("timeout"),
		stockResp: "---STOCKS---\n없음",
		claimResp: "---CLAIMS---\n없음",
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	job := createJob(t, repo, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected cleaning failure to be recoverable, got status %s", got.Status)
	}
	if !got.Result.Cleaning.UsedFallback {
		t.Fatalf("expected fallback flag on cleaning result")
	}
	if got.Result.Cleaning.Text != testScript {
		t.Fatalf("expected original script on fallback")
	}
}

func TestCleaningRejectsTruncatedOutput(t *testing.T) {
	llmStub := &scriptedLLM{
		cleanResp: "요약됨",
		stockResp: "---STOCKS---\n없음",
		claimResp: "---CLAIMS---\n없음",
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	job := createJob(t, repo, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if !got.Result.Cleaning.UsedFallback {
		t.Fatalf("expected cleaned text far shorter than input to be rejected")
	}
	if got.Result.Cleaning.Text != testScript {
		t.Fatalf("expected original script after rejection")
	}
}

func TestExtractionFailureYieldsEmptyStocks(t *testing.T) {
	llmStub := &scriptedLLM{
		stockErr:  errors.New("timeout"),
		claimResp: "---CLAIMS---\n없음",
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	job := createJob(t, repo, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected extraction failure to be recoverable, got status %s", got.Status)
	}
	if len(got.Result.Stocks.Stocks) != 0 {
		t.Fatalf("expected empty stock list, got %v", got.Result.Stocks.Stocks)
	}
	if len(got.Result.Verification.Entries) != 0 {
		t.Fatalf("expected no verification entries without stocks")
	}
}

func TestRecentUploadReusesSingleSearchPass(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n삼성전자",
		claimResp: "---CLAIMS---\n삼성전자 주가가 급등했습니다\n거래량이 사상 최대입니다",
	}
	searcher := newCountingSearcher()
	svc, repo := setupService(t, llmStub, searcher)
	// 10 days before the fixed clock.
	job := createJob(t, repo, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	cmp := got.Result.Comparison
	if cmp.DaysSinceUpload != 10 {
		t.Fatalf("expected 10 days since upload, got %d", cmp.DaysSinceUpload)
	}
	if !cmp.SearchSkipped {
		t.Fatalf("expected current search to be skipped for recent upload")
	}
	if len(cmp.Historical) != 2 || len(cmp.Current) != 2 {
		t.Fatalf("expected both result sets populated, got %d/%d", len(cmp.Historical), len(cmp.Current))
	}
	for query := range cmp.Historical {
		if searcher.callCount(query) != 1 {
			t.Fatalf("expected query %q searched once, got %d", query, searcher.callCount(query))
		}
		if _, ok := cmp.Current[query]; !ok {
			t.Fatalf("expected current set to reuse query %q", query)
		}
	}
}

func TestOldUploadRunsBothSearchPasses(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n삼성전자",
		claimResp: "---CLAIMS---\n삼성전자 주가가 급등했습니다",
	}
	searcher := newCountingSearcher()
	svc, repo := setupService(t, llmStub, searcher)
	// 61 days before the fixed clock.
	job := createJob(t, repo, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	cmp := got.Result.Comparison
	if cmp.SearchSkipped {
		t.Fatalf("expected both search passes for old upload")
	}
	if len(cmp.Historical) != 1 || len(cmp.Current) != 1 {
		t.Fatalf("expected one query per set, got %d/%d", len(cmp.Historical), len(cmp.Current))
	}
	for query := range cmp.Historical {
		if !strings.Contains(query, "2025년 4월") {
			t.Fatalf("expected upload-time query to carry the upload month, got %q", query)
		}
	}
	for query := range cmp.Current {
		if strings.Contains(query, "2025년") {
			t.Fatalf("expected current query without a date tag, got %q", query)
		}
	}
}

func TestTemporalBranchBoundary(t *testing.T) {
	cases := []struct {
		name        string
		uploadDate  time.Time
		wantDays    int
		wantSkipped bool
		wantCalls   int
	}{
		{
			name:        "thirty days reuses a single pass",
			uploadDate:  time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC),
			wantDays:    30,
			wantSkipped: true,
			wantCalls:   1,
		},
		{
			name:        "thirty-one days runs both passes",
			uploadDate:  time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC),
			wantDays:    31,
			wantSkipped: false,
			wantCalls:   2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llmStub := &scriptedLLM{
				stockResp: "---STOCKS---\n삼성전자",
				claimResp: "---CLAIMS---\n삼성전자 주가가 급등했습니다",
			}
			searcher := newCountingSearcher()
			svc, repo := setupService(t, llmStub, searcher)
			job := createJob(t, repo, tc.uploadDate)

			svc.runPipeline(context.Background(), job.ID)

			got, _ := repo.GetByID(context.Background(), job.ID)
			cmp := got.Result.Comparison
			if cmp.DaysSinceUpload != tc.wantDays {
				t.Fatalf("expected %d days since upload, got %d", tc.wantDays, cmp.DaysSinceUpload)
			}
			if cmp.SearchSkipped != tc.wantSkipped {
				t.Fatalf("expected SearchSkipped=%v at %d days, got %v", tc.wantSkipped, tc.wantDays, cmp.SearchSkipped)
			}
			if total := searcher.totalCalls(); total != tc.wantCalls {
				t.Fatalf("expected %d search calls at %d days, got %d", tc.wantCalls, tc.wantDays, total)
			}
		})
	}
}

func TestSearchFailureDoesNotFailJob(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n삼성전자",
		claimResp: "---CLAIMS---\n삼성전자 주가가 급등했습니다",
	}
	searcher := newCountingSearcher()
	searcher.fail["삼성전자 삼성전자 주가가 급등했습니다"] = true
	svc, repo := setupService(t, llmStub, searcher)
	job := createJob(t, repo, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected search failure to be recoverable, got status %s", got.Status)
	}
	var sawError bool
	for _, outcome := range got.Result.Comparison.Historical {
		if outcome.Error != "" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected failed query to carry its error in the outcome")
	}
}

func TestVerifyStocksRecordsPerEntityErrors(t *testing.T) {
	svc, _ := setupService(t, &scriptedLLM{}, newCountingSearcher())
	svc.Registry = &stubChecker{failFor: map[string]bool{"카카오": true}}

	result := svc.verifyStocks(context.Background(), []string{"삼성전자", "카카오", "네이버"})

	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Error != "" || result.Entries[2].Error != "" {
		t.Fatalf("expected sibling lookups to succeed")
	}
	if result.Entries[1].Error == "" {
		t.Fatalf("expected failed lookup to record its error")
	}
	if result.Entries[1].Check.Name != "카카오" {
		t.Fatalf("expected slot order to match input order, got %q", result.Entries[1].Check.Name)
	}
}

func TestQuasiAdvisorTranscriptScannedForViolations(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n없음",
		claimResp: "---CLAIMS---\n없음",
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	job := Job{
		ID:          "job-quasi",
		Script:      "리딩방에 들어오시면 수익 보장해 드립니다.",
		UploadDate:  time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		ChannelName: "주식공장",
		Status:      StatusCreated,
		Step:        StepCreated,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	svc.runPipeline(context.Background(), job.ID)

	got, _ := repo.GetByID(context.Background(), job.ID)
	identityResult := got.Result.Identity
	if identityResult.Verification.Category != "quasi_advisor" {
		t.Fatalf("expected quasi_advisor category, got %s", identityResult.Verification.Category)
	}
	if len(identityResult.Violations) == 0 {
		t.Fatalf("expected compliance violations for quasi-advisor transcript")
	}
}

type stageRecorder struct {
	*MemoryRepo
	mu         sync.Mutex
	progresses []int
}

func (r *stageRecorder) UpdateStage(ctx context.Context, jobID, status, step string, progress int) error {
	r.mu.Lock()
	r.progresses = append(r.progresses, progress)
	r.mu.Unlock()
	return r.MemoryRepo.UpdateStage(ctx, jobID, status, step, progress)
}

func TestProgressCheckpointsAreMonotonic(t *testing.T) {
	llmStub := &scriptedLLM{
		stockResp: "---STOCKS---\n삼성전자",
		claimResp: "---CLAIMS---\n없음",
	}
	svc, repo := setupService(t, llmStub, newCountingSearcher())
	recorder := &stageRecorder{MemoryRepo: repo}
	svc.Repo = recorder
	job := createJob(t, repo, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	svc.runPipeline(context.Background(), job.ID)

	want := []int{5, 10, 30, 50, 70, 80, 90}
	if len(recorder.progresses) != len(want) {
		t.Fatalf("expected %d checkpoints, got %v", len(want), recorder.progresses)
	}
	for i, p := range recorder.progresses {
		if p != want[i] {
			t.Fatalf("checkpoint %d: expected %d, got %d", i, want[i], p)
		}
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	svc, _ := setupService(t, &scriptedLLM{}, newCountingSearcher())

	if _, err := svc.Submit(context.Background(), SubmitInput{
		UploadDate:  time.Now(),
		ChannelName: "채널",
	}); err == nil {
		t.Fatalf("expected error for missing script")
	}
	if _, err := svc.Submit(context.Background(), SubmitInput{
		Script:      "자막",
		ChannelName: "채널",
	}); err == nil {
		t.Fatalf("expected error for missing upload date")
	}
	if _, err := svc.Submit(context.Background(), SubmitInput{
		Script:     "자막",
		UploadDate: time.Now(),
	}); err == nil {
		t.Fatalf("expected error for missing channel name")
	}
}

func TestGetUnknownJobReturnsNotFound(t *testing.T) {
	svc, _ := setupService(t, &scriptedLLM{}, newCountingSearcher())
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
