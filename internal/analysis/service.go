package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"trustcheck-backend/internal/claims"
	"trustcheck-backend/internal/corpus"
	"trustcheck-backend/internal/identity"
	"trustcheck-backend/internal/llm"
	"trustcheck-backend/internal/registry"
	"trustcheck-backend/internal/search"
	"trustcheck-backend/internal/shared/metrics"
	"trustcheck-backend/internal/shared/telemetry"
)

// DefaultRecentWindowDays is the upload-age threshold below which the
// current-search fan-out is skipped and the upload-time results are reused.
const DefaultRecentWindowDays = 30

// SubmitInput carries a validated submission payload.
type SubmitInput struct {
	Script        string
	UploadDate    time.Time
	ChannelName   string
	ChannelHandle string
	ChannelID     string
}

// Retriever serves top-K lookups against the cached disclosure corpus.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]corpus.Match, error)
}

// Service contains the job registry surface and the pipeline orchestrator.
type Service struct {
	Repo      Repo
	LLM       llm.Client
	Searcher  search.Searcher
	Registry  registry.Checker
	Retriever Retriever

	SearchConcurrency int
	RecentWindowDays  int
	RetrievalTopK     int
	ScriptTokenBudget int

	// Now is swappable for temporal-branch tests.
	Now func() time.Time
}

// Submit registers a new job and kicks off asynchronous pipeline execution.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Job, error) {
	if strings.TrimSpace(in.Script) == "" {
		return Job{}, errors.New("script is required")
	}
	if in.UploadDate.IsZero() {
		return Job{}, errors.New("upload date is required")
	}
	if strings.TrimSpace(in.ChannelName) == "" {
		return Job{}, errors.New("channel name is required")
	}

	job := Job{
		ID:            uuid.NewString(),
		Script:        in.Script,
		UploadDate:    in.UploadDate,
		ChannelName:   strings.TrimSpace(in.ChannelName),
		ChannelHandle: strings.TrimSpace(in.ChannelHandle),
		ChannelID:     strings.TrimSpace(in.ChannelID),
		Status:        StatusCreated,
		Step:          StepCreated,
		Progress:      0,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, err
	}

	go s.runPipeline(backgroundWithRequestID(ctx), job.ID)

	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (Job, error) {
	if jobID == "" {
		return Job{}, errors.New("jobID is required")
	}
	return s.Repo.GetByID(ctx, jobID)
}

// runPipeline executes the stages in fixed order. Each checkpoint is written
// before the stage body runs, so pollers always see the step about to run.
func (s *Service) runPipeline(ctx context.Context, jobID string) {
	metrics.IncJobStarted()
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.failJob(ctx, jobID, fmt.Errorf("panic: %v", r))
		}
		metrics.ObserveJobDurationMs(float64(time.Since(started).Microseconds()) / 1000.0)
	}()

	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("job lookup: %w", err))
		return
	}
	if s.LLM == nil {
		s.failJob(ctx, jobID, errors.New("missing llm client"))
		return
	}

	prev := job.Status
	advance := func(status, step string, progress int) bool {
		if err := s.Repo.UpdateStage(ctx, jobID, status, step, progress); err != nil {
			s.failJob(ctx, jobID, fmt.Errorf("set stage %s: %w", status, err))
			return false
		}
		telemetry.Info("analysis.status", map[string]any{
			"request_id":        requestIDFromContext(ctx),
			"job_id":            jobID,
			"status":            status,
			"step":              step,
			"progress":          progress,
			"status_transition": prev + "->" + status,
		})
		prev = status
		return true
	}

	script := llm.TrimToTokenLimit(job.Script, s.scriptTokenBudget())

	if !advance(StatusCleaning, StepCleaning, ProgressCleaning) {
		return
	}
	cleaning := s.cleanScript(ctx, jobID, script)

	if !advance(StatusExtracting, StepExtracting, ProgressExtracting) {
		return
	}
	stocks := s.extractStocks(ctx, jobID, cleaning.Text)

	if !advance(StatusVerifying, StepVerifying, ProgressVerifying) {
		return
	}
	verification := s.verifyStocks(ctx, stocks.Stocks)

	if !advance(StatusRetrieving, StepRetrieving, ProgressRetrieving) {
		return
	}
	retrieval := s.retrieveFilings(ctx, jobID, stocks.Stocks, cleaning.Text)

	if !advance(StatusComparing, StepComparing, ProgressComparing) {
		return
	}
	comparison := s.compareClaims(ctx, job, cleaning.Text, stocks.Stocks)

	if !advance(StatusIdentityCheck, StepIdentityCheck, ProgressIdentityCheck) {
		return
	}
	identityResult := checkIdentity(job, cleaning.Text)

	if !advance(StatusSynthesizing, StepSynthesizing, ProgressSynthesizing) {
		return
	}
	report := &Report{
		Cleaning:     cleaning,
		Stocks:       stocks,
		Verification: verification,
		Retrieval:    retrieval,
		Comparison:   comparison,
		Identity:     identityResult,
	}
	summary, err := s.synthesize(ctx, job, report)
	if err != nil {
		// No later stage can recover a failed synthesis.
		s.failJob(ctx, jobID, fmt.Errorf("synthesis: %w", err))
		return
	}
	report.Summary = summary

	if err := s.Repo.Complete(ctx, jobID, report); err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("set job result: %w", err))
		return
	}
	metrics.IncJobCompleted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            jobID,
		"status":            StatusCompleted,
		"step":              StepCompleted,
		"progress":          ProgressCompleted,
		"status_transition": prev + "->" + StatusCompleted,
	})
}

// cleanScript normalizes the transcript via the LLM. Any failure falls back
// to the unmodified input; cleaning never aborts the job.
func (s *Service) cleanScript(ctx context.Context, jobID, script string) CleanResult {
	system, user := llm.CleaningPrompts(script)
	cleaned, err := s.LLM.Complete(ctx, system, user)
	if err != nil {
		telemetry.Error("analysis.cleaning_fallback", map[string]any{
			"job_id": jobID,
			"error":  sanitizeError(err),
		})
		return CleanResult{Text: script, UsedFallback: true}
	}
	cleaned = strings.TrimSpace(cleaned)
	if !cleaningValid(script, cleaned) {
		telemetry.Error("analysis.cleaning_fallback", map[string]any{
			"job_id": jobID,
			"error":  "cleaned text failed validation",
		})
		return CleanResult{Text: script, UsedFallback: true}
	}
	return CleanResult{Text: cleaned}
}

// cleaningValid rejects cleaned text that lost too much of the original; a
// result under 70% of the input length means content was dropped, not fixed.
func cleaningValid(original, cleaned string) bool {
	if cleaned == "" {
		return false
	}
	return utf8.RuneCountInString(cleaned)*10 >= utf8.RuneCountInString(original)*7
}

// extractStocks asks the LLM for directly recommended stock names. An empty
// list is a valid outcome; an LLM failure degrades to an empty list.
func (s *Service) extractStocks(ctx context.Context, jobID, script string) ExtractResult {
	system, user := llm.StockExtractionPrompts(script)
	raw, err := s.LLM.Complete(ctx, system, user)
	if err != nil {
		telemetry.Error("analysis.extraction_fallback", map[string]any{
			"job_id": jobID,
			"error":  sanitizeError(err),
		})
		return ExtractResult{Stocks: []string{}}
	}
	stocks := llm.ParseDelimitedList(raw, llm.StockListMarker)
	if stocks == nil {
		stocks = []string{}
	}
	return ExtractResult{Stocks: stocks}
}

// verifyStocks runs one registry lookup per stock over a bounded worker
// pool. A single lookup's failure is recorded in its own slot and never
// blocks the sibling lookups.
func (s *Service) verifyStocks(ctx context.Context, stocks []string) VerifyResult {
	entries := make([]StockVerification, len(stocks))
	if len(stocks) == 0 || s.Registry == nil {
		return VerifyResult{Entries: entries}
	}

	jobs := make(chan int)
	workers := s.searchConcurrency()
	if workers > len(stocks) {
		workers = len(stocks)
	}

	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				check, err := s.Registry.CheckStock(ctx, stocks[i])
				if err != nil {
					entries[i] = StockVerification{
						Check: registry.StockCheck{Name: stocks[i]},
						Error: sanitizeError(err),
					}
					continue
				}
				entries[i] = StockVerification{Check: check}
			}
			done <- struct{}{}
		}()
	}
	for i := range stocks {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < workers; w++ {
		<-done
	}

	return VerifyResult{Entries: entries}
}

// retrieveFilings issues one retrieval-index query against the cached
// corpus. No corpus or a retrieval failure yields an empty match list.
func (s *Service) retrieveFilings(ctx context.Context, jobID string, stocks []string, script string) RetrieveResult {
	if s.Retriever == nil {
		return RetrieveResult{Matches: []corpus.Match{}}
	}
	query := retrievalQuery(stocks, script)
	matches, err := s.Retriever.Query(ctx, query, s.retrievalTopK())
	if err != nil {
		telemetry.Error("analysis.retrieval_fallback", map[string]any{
			"job_id": jobID,
			"error":  sanitizeError(err),
		})
		return RetrieveResult{Query: query, Matches: []corpus.Match{}}
	}
	if matches == nil {
		matches = []corpus.Match{}
	}
	return RetrieveResult{Query: query, Matches: matches}
}

func retrievalQuery(stocks []string, script string) string {
	if len(stocks) > 0 {
		return strings.Join(stocks, " ") + " 재무 공시"
	}
	runes := []rune(script)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	return string(runes)
}

// compareClaims mines time-sensitive claims and fans their search queries
// out. Recent uploads run one fan-out whose results double as the current
// set; older uploads run an upload-time fan-out and a second one for "now".
func (s *Service) compareClaims(ctx context.Context, job Job, script string, stocks []string) CompareResult {
	result := CompareResult{
		Claims:     []claims.Claim{},
		Historical: map[string]SearchOutcome{},
		Current:    map[string]SearchOutcome{},
	}

	now := s.now()
	result.DaysSinceUpload = int(now.Sub(job.UploadDate).Hours() / 24)
	recent := result.DaysSinceUpload <= s.recentWindowDays()

	extractor := claims.Extractor{LLM: s.LLM}
	claimList, err := extractor.Extract(ctx, script, stocks)
	if err != nil {
		telemetry.Error("analysis.claims_fallback", map[string]any{
			"job_id": job.ID,
			"error":  sanitizeError(err),
		})
		claimList = nil
	}
	if len(claimList) > 0 {
		result.Claims = claimList
	}

	if len(claimList) == 0 || s.Searcher == nil {
		result.SearchSkipped = recent
		return result
	}

	if recent {
		queries := make([]string, len(claimList))
		for i, claim := range claimList {
			queries[i] = claim.SearchQuery
		}
		outcomes := toOutcomes(search.RunAll(ctx, s.Searcher, queries, s.searchConcurrency()))
		result.SearchSkipped = true
		result.Historical = outcomes
		result.Current = outcomes
		return result
	}

	historicalQueries := make([]string, len(claimList))
	currentQueries := make([]string, len(claimList))
	uploadTag := job.UploadDate.Format("2006년 1월")
	for i, claim := range claimList {
		historicalQueries[i] = claim.SearchQuery + " " + uploadTag
		currentQueries[i] = claim.SearchQuery
	}
	result.Historical = toOutcomes(search.RunAll(ctx, s.Searcher, historicalQueries, s.searchConcurrency()))
	result.Current = toOutcomes(search.RunAll(ctx, s.Searcher, currentQueries, s.searchConcurrency()))
	return result
}

func toOutcomes(results map[string]search.Result) map[string]SearchOutcome {
	out := make(map[string]SearchOutcome, len(results))
	for query, r := range results {
		if r.Err != nil {
			out[query] = SearchOutcome{Error: sanitizeError(r.Err)}
			continue
		}
		out[query] = SearchOutcome{Text: r.Text}
	}
	return out
}

// checkIdentity resolves the uploader and, for quasi-advisory operators,
// scans the transcript for compliance violations.
func checkIdentity(job Job, script string) IdentityResult {
	verification := identity.Verify(job.ChannelName, job.ChannelHandle, job.ChannelID)
	result := IdentityResult{Verification: verification}
	if verification.Category == identity.CategoryQuasiAdvisor {
		result.Violations = identity.ScanViolations(script)
	}
	return result
}

// synthesize merges all stage outputs into the final report text.
func (s *Service) synthesize(ctx context.Context, job Job, report *Report) (string, error) {
	in := llm.SynthesisInput{
		ChannelName:       job.ChannelName,
		UploadDate:        job.UploadDate.Format("2006-01-02"),
		Script:            llm.TrimToTokenLimit(report.Cleaning.Text, s.scriptTokenBudget()),
		StockSummary:      strings.Join(report.Stocks.Stocks, ", "),
		VerificationNotes: formatVerification(report.Verification),
		RetrievalNotes:    formatRetrieval(report.Retrieval),
		ComparisonNotes:   formatComparison(report.Comparison),
		IdentityNotes:     formatIdentity(report.Identity),
	}
	system, user := llm.SynthesisPrompts(in)
	return s.LLM.Complete(ctx, system, user)
}

func formatVerification(v VerifyResult) string {
	var lines []string
	for _, entry := range v.Entries {
		switch {
		case entry.Error != "":
			lines = append(lines, fmt.Sprintf("%s: 조회 실패 (%s)", entry.Check.Name, entry.Error))
		case !entry.Check.Listed:
			lines = append(lines, fmt.Sprintf("%s: 상장사 미확인", entry.Check.Name))
		default:
			line := fmt.Sprintf("%s: 상장 확인", entry.Check.Name)
			if entry.Check.DebtRatio != nil {
				line += fmt.Sprintf(", 부채비율 %.1f%%", *entry.Check.DebtRatio)
				if entry.Check.HighDebtRisk {
					line += " (고위험)"
				}
			}
			if len(entry.Check.Alerts) > 0 {
				line += fmt.Sprintf(", 투자경고 지정 %d건", len(entry.Check.Alerts))
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func formatRetrieval(r RetrieveResult) string {
	var lines []string
	for _, m := range r.Matches {
		lines = append(lines, fmt.Sprintf("[유사도 %.2f] %s", m.Similarity, truncateRunes(m.Chunk, 300)))
	}
	return strings.Join(lines, "\n")
}

func formatComparison(c CompareResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "추출된 주장 %d건, 업로드 후 %d일 경과", len(c.Claims), c.DaysSinceUpload)
	if c.SearchSkipped {
		b.WriteString(" (최근 영상: 현재 시점 검색 생략)")
	}
	for _, claim := range c.Claims {
		fmt.Fprintf(&b, "\n주장: %s", claim.Text)
		if outcome, ok := c.Historical[historicalKey(c, claim)]; ok {
			appendOutcome(&b, "업로드 시점", outcome)
		}
		if !c.SearchSkipped {
			if outcome, ok := c.Current[claim.SearchQuery]; ok {
				appendOutcome(&b, "현재 시점", outcome)
			}
		}
	}
	return b.String()
}

func historicalKey(c CompareResult, claim claims.Claim) string {
	if c.SearchSkipped {
		return claim.SearchQuery
	}
	for key := range c.Historical {
		if strings.HasPrefix(key, claim.SearchQuery+" ") {
			return key
		}
	}
	return claim.SearchQuery
}

func appendOutcome(b *strings.Builder, label string, outcome SearchOutcome) {
	if outcome.Error != "" {
		fmt.Fprintf(b, "\n  %s: 검색 실패 (%s)", label, outcome.Error)
		return
	}
	fmt.Fprintf(b, "\n  %s: %s", label, truncateRunes(outcome.Text, 300))
}

func formatIdentity(r IdentityResult) string {
	var b strings.Builder
	v := r.Verification
	if v.Verified {
		fmt.Fprintf(&b, "확인된 운영 주체: %s (%s, 위험도 %s)", v.Organization, v.Category, v.RiskLevel)
	} else {
		fmt.Fprintf(&b, "운영 주체 미확인 (위험도 %s)", v.RiskLevel)
	}
	for _, violation := range r.Violations {
		fmt.Fprintf(&b, "\n위반 의심: %s (심각도 %s)", violation.Rule, violation.Severity)
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// failJob marks the job errored. The repo update uses a fresh context so a
// canceled pipeline context cannot also block recording the failure.
func (s *Service) failJob(ctx context.Context, jobID string, err error) {
	metrics.IncJobFailed()
	msg := sanitizeError(err)
	if updateErr := s.Repo.Fail(context.Background(), jobID, msg); updateErr != nil {
		telemetry.Error("analysis.fail_update", map[string]any{
			"job_id": jobID,
			"error":  sanitizeError(updateErr),
			"cause":  msg,
		})
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"job_id":     jobID,
		"status":     StatusError,
		"error":      msg,
	})
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func (s *Service) searchConcurrency() int {
	if s.SearchConcurrency > 0 {
		return s.SearchConcurrency
	}
	return search.DefaultConcurrency
}

func (s *Service) recentWindowDays() int {
	if s.RecentWindowDays > 0 {
		return s.RecentWindowDays
	}
	return DefaultRecentWindowDays
}

func (s *Service) retrievalTopK() int {
	if s.RetrievalTopK > 0 {
		return s.RetrievalTopK
	}
	return corpus.DefaultTopK
}

func (s *Service) scriptTokenBudget() int {
	if s.ScriptTokenBudget > 0 {
		return s.ScriptTokenBudget
	}
	return llm.DefaultScriptTokenBudget
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
