package patterns

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"formpilot/internal/profile"
	"formpilot/internal/textmatch"
)

// Matching thresholds. One policy for every lookup path: exact normalized
// match scores 1.0, keyword overlap is accepted at >= 0.70, and an
// intent-keyword hit is an alternate acceptance path at 0.75.
const (
	scoreExact         = 1.0
	overlapThreshold   = 0.70
	intentKeywordScore = 0.75
)

// Store is the durable, process-scoped pattern cache. The full pattern list
// is loaded at open and kept in memory; writes go through to SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*LearnedPattern // by ID
}

// LookupResult is a usable pattern hit.
type LookupResult struct {
	Pattern *LearnedPattern
	Answer  string
	Score   float64
}

// Stats summarizes store contents for the CLI.
type Stats struct {
	TotalPatterns   int            `json:"totalPatterns"`
	IntentBreakdown map[string]int `json:"intentBreakdown"`
	FillRuns        int            `json:"fillRuns"`
	FieldsSucceeded int            `json:"fieldsSucceeded"`
	FieldsFailed    int            `json:"fieldsFailed"`
}

// Open creates or opens the pattern store at dbPath.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create pattern store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open pattern database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify pattern database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, logger: logger, cache: make(map[string]*LearnedPattern)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pattern schema: %w", err)
	}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	logger.Debug("pattern store opened", zap.String("path", dbPath), zap.Int("patterns", len(s.cache)))
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learned_patterns (
		id TEXT PRIMARY KEY,
		question_pattern TEXT NOT NULL,
		intent TEXT NOT NULL,
		field_class TEXT NOT NULL,
		confidence REAL DEFAULT 1.0,
		usage_count INTEGER DEFAULT 0,
		source TEXT DEFAULT 'ai',
		verified INTEGER DEFAULT 1,
		answer_mappings TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_question ON learned_patterns(question_pattern);
	CREATE INDEX IF NOT EXISTS idx_patterns_intent ON learned_patterns(intent);

	CREATE TABLE IF NOT EXISTS fill_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT,
		fields_succeeded INTEGER DEFAULT 0,
		fields_failed INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT id, question_pattern, intent, field_class, confidence,
		usage_count, source, verified, answer_mappings, created_at, last_used
		FROM learned_patterns`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p LearnedPattern
		var mappingsJSON string
		var verified int
		if err := rows.Scan(&p.ID, &p.QuestionPattern, &p.Intent, &p.FieldClass, &p.Confidence,
			&p.UsageCount, &p.Source, &verified, &mappingsJSON, &p.CreatedAt, &p.LastUsed); err != nil {
			return err
		}
		p.Verified = verified != 0
		if err := json.Unmarshal([]byte(mappingsJSON), &p.Mappings); err != nil {
			s.logger.Warn("skipping pattern with corrupt mappings", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		s.cache[p.ID] = &p
	}
	return rows.Err()
}

// Lookup finds the best usable pattern for a question. Hard filters first
// (intent whitelist, field-class compatibility), then question score, then
// answer usability. Ties break toward higher historical usage. A hit
// increments the pattern's usage count and refreshes its last-used time.
func (s *Store) Lookup(question, fieldKind string, options []string) (*LookupResult, error) {
	normQ := textmatch.Normalize(question)
	if normQ == "" {
		return nil, nil
	}
	wantClass := FieldClassOf(fieldKind)

	s.mu.RLock()
	var best *LookupResult
	for _, p := range s.cache {
		if !profile.AllowedIntents[p.Intent] {
			continue
		}
		if !compatible(p.FieldClass, wantClass) {
			continue
		}

		score := questionScore(normQ, p)
		if score <= 0 {
			continue
		}

		answer, ok := p.UsableAnswer(options)
		if !ok {
			continue
		}

		if best == nil || score > best.Score ||
			(score == best.Score && p.UsageCount > best.Pattern.UsageCount) {
			best = &LookupResult{Pattern: p, Answer: answer, Score: score}
		}
	}
	s.mu.RUnlock()

	if best == nil {
		return nil, nil
	}
	if err := s.touch(best.Pattern.ID); err != nil {
		s.logger.Warn("failed to record pattern usage", zap.String("id", best.Pattern.ID), zap.Error(err))
	}
	return best, nil
}

// questionScore returns 0 when the pattern does not match the question.
func questionScore(normQ string, p *LearnedPattern) float64 {
	if normQ == p.QuestionPattern {
		return scoreExact
	}
	if overlap := textmatch.KeywordOverlap(normQ, p.QuestionPattern); overlap >= overlapThreshold {
		return overlap
	}
	// Alternate path: the question hits one of the intent's trigger phrases.
	for _, kw := range profile.IntentKeywords[p.Intent] {
		if kw != "" && strings.Contains(normQ, kw) {
			return intentKeywordScore
		}
	}
	return 0
}

func (s *Store) touch(id string) error {
	now := time.Now()
	s.mu.Lock()
	if p, ok := s.cache[id]; ok {
		p.UsageCount++
		p.LastUsed = now
	}
	s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE learned_patterns SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`, now, id)
	return err
}

// Save upserts a learned pattern. The question is normalized before
// keying so "Website" and "website" collapse to one row; an existing
// pattern absorbs new variants instead of being replaced. Forbidden
// placeholder variants are dropped before the write.
func (s *Store) Save(p LearnedPattern) error {
	p.QuestionPattern = textmatch.Normalize(p.QuestionPattern)
	if p.QuestionPattern == "" {
		return fmt.Errorf("empty question pattern")
	}
	if p.Intent == "" {
		p.Intent = "unknown"
	}
	if p.ID == "" {
		p.ID = PatternID(p.QuestionPattern, p.Intent)
	}

	// Filter forbidden variants before anything is persisted.
	cleaned := make([]AnswerMapping, 0, len(p.Mappings))
	for _, m := range p.Mappings {
		m.Variants = textmatch.FilterForbidden(m.Variants)
		if textmatch.Forbidden(m.CanonicalValue) && len(m.Variants) == 0 {
			continue
		}
		cleaned = append(cleaned, m)
	}
	p.Mappings = cleaned
	if len(p.Mappings) == 0 {
		return fmt.Errorf("pattern %q has no storable answers", p.QuestionPattern)
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache[p.ID]; ok {
		for _, m := range p.Mappings {
			for _, v := range m.Variants {
				_ = existing.MergeVariant(m.CanonicalValue, v, m.ContextOptions)
			}
		}
		if p.Confidence > existing.Confidence {
			existing.Confidence = p.Confidence
		}
		existing.LastUsed = now
		return s.persistLocked(existing)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.LastUsed = now
	if p.Source == "" {
		p.Source = "ai"
	}
	s.cache[p.ID] = &p
	return s.persistLocked(&p)
}

func (s *Store) persistLocked(p *LearnedPattern) error {
	mappingsJSON, err := json.Marshal(p.Mappings)
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}
	verified := 0
	if p.Verified {
		verified = 1
	}
	_, err = s.db.Exec(`INSERT INTO learned_patterns
		(id, question_pattern, intent, field_class, confidence, usage_count, source, verified, answer_mappings, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			confidence = excluded.confidence,
			usage_count = excluded.usage_count,
			verified = excluded.verified,
			answer_mappings = excluded.answer_mappings,
			last_used = excluded.last_used`,
		p.ID, p.QuestionPattern, p.Intent, p.FieldClass, p.Confidence, p.UsageCount,
		p.Source, verified, string(mappingsJSON), p.CreatedAt, p.LastUsed)
	if err != nil {
		return fmt.Errorf("persist pattern %s: %w", p.ID, err)
	}
	return nil
}

// All returns a snapshot of every stored pattern, most used first.
func (s *Store) All() []*LearnedPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*LearnedPattern, 0, len(s.cache))
	for _, p := range s.cache {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].QuestionPattern < out[j].QuestionPattern
	})
	return out
}

// Shareable returns patterns whose intent may be exported for sharing.
func (s *Store) Shareable() []*LearnedPattern {
	all := s.All()
	out := make([]*LearnedPattern, 0, len(all))
	for _, p := range all {
		if profile.ShareableIntents[p.Intent] {
			out = append(out, p)
		}
	}
	return out
}

// RecordRun stores the aggregate result of one fill run for local stats.
func (s *Store) RecordRun(runID, url string, succeeded, failed int) error {
	_, err := s.db.Exec(`INSERT INTO fill_runs (run_id, url, fields_succeeded, fields_failed) VALUES (?, ?, ?, ?)`,
		runID, url, succeeded, failed)
	if err != nil {
		return fmt.Errorf("record fill run: %w", err)
	}
	return nil
}

// GetStats aggregates pattern and run statistics.
func (s *Store) GetStats() (Stats, error) {
	st := Stats{IntentBreakdown: make(map[string]int)}

	s.mu.RLock()
	st.TotalPatterns = len(s.cache)
	for _, p := range s.cache {
		st.IntentBreakdown[p.Intent]++
	}
	s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(fields_succeeded), 0), COALESCE(SUM(fields_failed), 0) FROM fill_runs`)
	if err := row.Scan(&st.FillRuns, &st.FieldsSucceeded, &st.FieldsFailed); err != nil {
		return st, fmt.Errorf("aggregate fill runs: %w", err)
	}
	return st, nil
}
