package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/closeplan/internal/logging"
)

// DefaultResolveTimeout bounds a single owner resolution call.
var DefaultResolveTimeout = 15 * time.Second

// DefaultSaveTimeout bounds a single commit save call.
var DefaultSaveTimeout = time.Minute

// Options wires the collaborators of a Service.
type Options struct {
	Decoder   SheetDecoder      // required
	Directory OwnerDirectory    // required
	Saver     RecordSaver       // required
	Known     KnownRecordSource // optional; dependency names stay unresolved without it
	Notifier  Notifier
	Recorder  Recorder
	Limiter   *ImportLimiter

	MaxFileSize    int64
	ResolveTimeout time.Duration
	SaveTimeout    time.Duration

	NewID IDFunc
	Now   func() time.Time
}

// Service owns import sessions and runs the parse, validate, resolve,
// edit and commit pipeline against them.
type Service struct {
	decoder  SheetDecoder
	resolver *Resolver
	known    KnownRecordSource
	saver    RecordSaver
	notifier Notifier
	recorder Recorder
	limiter  *ImportLimiter

	maxFileSize    int64
	resolveTimeout time.Duration
	saveTimeout    time.Duration

	newID IDFunc
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a new Service instance.
func NewService(opts Options) (*Service, error) {
	if opts.Decoder == nil {
		return nil, errors.New("new service: sheet decoder is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("new service: owner directory is required")
	}
	if opts.Saver == nil {
		return nil, errors.New("new service: record saver is required")
	}

	s := &Service{
		decoder:        opts.Decoder,
		resolver:       NewResolver(opts.Directory),
		known:          opts.Known,
		saver:          opts.Saver,
		notifier:       opts.Notifier,
		recorder:       opts.Recorder,
		limiter:        opts.Limiter,
		maxFileSize:    opts.MaxFileSize,
		resolveTimeout: opts.ResolveTimeout,
		saveTimeout:    opts.SaveTimeout,
		newID:          opts.NewID,
		now:            opts.Now,
		sessions:       make(map[string]*Session),
	}

	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultImportWait)
	}
	if s.resolveTimeout <= 0 {
		s.resolveTimeout = DefaultResolveTimeout
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = DefaultSaveTimeout
	}
	if s.newID == nil {
		s.newID = NewRecordID
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// ProfileInfo describes an import kind to clients.
type ProfileInfo struct {
	Key       string              `json:"key"`
	Label     string              `json:"label"`
	Headers   []string            `json:"headers"`
	Picklists map[string][]string `json:"picklists"`
	Mandatory []string            `json:"mandatory"`
}

// ListProfiles returns information about all registered profiles.
func (s *Service) ListProfiles() []ProfileInfo {
	defs := All()
	infos := make([]ProfileInfo, len(defs))
	for i, p := range defs {
		pl := make(map[string][]string, len(p.Picklists))
		for _, list := range p.Picklists {
			pl[list.Field] = list.Values
		}
		infos[i] = ProfileInfo{
			Key:       p.Key,
			Label:     p.Label,
			Headers:   p.Headers(),
			Picklists: pl,
			Mandatory: p.Mandatory,
		}
	}
	return infos
}

// OpenSession starts an empty import session for a profile.
// scope identifies the parent the records belong to, such as a close plan
// or an opportunity.
func (s *Service) OpenSession(ctx context.Context, profileKey, scope string) (SessionSnapshot, error) {
	p, ok := Get(profileKey)
	if !ok {
		return SessionSnapshot{}, fmt.Errorf("open session: %w: %s", ErrUnknownProfile, profileKey)
	}

	sess := newSession(uuid.NewString(), p, scope, s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logging.FromContext(ctx).Info("import session opened",
		"session_id", sess.ID,
		"profile", p.Key,
		"scope", scope,
		"client", clientFromContext(ctx),
	)

	return sess.Snapshot(), nil
}

// Session returns a live session by id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// Snapshot returns the merged view of a session.
func (s *Service) Snapshot(id string) (SessionSnapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Merged returns the session's records with pending edits applied.
func (s *Service) Merged(id string) ([]Record, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.draft.Merged(sess.Profile), nil
}

// CloseSession discards a session and its uncommitted records.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("close session %s: %w", id, ErrSessionNotFound)
	}

	sess.mu.Lock()
	busy := sess.busy
	sess.mu.Unlock()
	if busy {
		return fmt.Errorf("close session %s: %w", id, ErrSessionBusy)
	}

	delete(s.sessions, id)
	slog.Info("import session closed", "session_id", id)
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// ImportReport is the outcome of one successful import.
type ImportReport struct {
	SessionID  string       `json:"sessionId"`
	FileName   string       `json:"fileName"`
	Rows       int          `json:"rows"`
	Imported   int          `json:"imported"`
	Dropped    int          `json:"dropped"`
	Invalid    []int        `json:"invalidRows"`
	Unresolved int          `json:"unresolvedLinks"`
	State      SessionState `json:"state"`
	Notice     Notice       `json:"notice"`
	Records    []Record     `json:"records"`
}

// Import decodes a spreadsheet, then parses, validates and resolves its rows
// and appends them to the session.
//
// The session is busy for the duration; concurrent imports, edits and
// commits fail with ErrSessionBusy. If resolution fails the session returns
// to the state it had before the import and the error is a *ResolutionError.
func (s *Service) Import(ctx context.Context, sessionID, fileName string, r io.Reader) (*ImportReport, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	p := sess.Profile
	client := clientFromContext(ctx)
	log := logging.ForSession(ctx, sess.ID, p.Key).With("file", fileName)

	prevState, prevDraft, err := sess.begin(s.now())
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	defer func() { sess.end(s.now()) }()

	if err := s.limiter.Acquire(ctx); err != nil {
		s.recorder.ImportFinished(p.Key, "rejected", 0, 0, 0)
		return nil, fmt.Errorf("import: %w", err)
	}
	defer s.limiter.Release()

	rows, err := s.decoder.Decode(ctx, fileName, s.limitSize(r))
	if err != nil {
		s.recorder.ImportFinished(p.Key, "decode_failed", 0, 0, 0)
		return nil, &DecodeError{FileName: fileName, Err: err}
	}
	if len(rows) == 0 {
		s.recorder.ImportFinished(p.Key, "empty", 0, 0, 0)
		return nil, fmt.Errorf("import %s: %w", fileName, ErrEmptyFile)
	}

	parsed := ParseRows(rows, p, sess.Scope, s.newID)
	s.publish(sess.transition(StateLoaded, nil, "parsed", client, s.now()))

	validated, invalid := ValidateAll(parsed, p)
	s.publish(sess.transition(StateValidated, nil, "validated", client, s.now()))

	s.publish(sess.transition(StateResolving, nil, "resolving", client, s.now()))
	resolved, err := s.resolve(ctx, sess, validated)
	if err != nil {
		restore := prevDraft
		s.publish(sess.transition(prevState, &restore, "resolution_failed", client, s.now()))
		s.notifier.Notify(sess.ID, resolutionNotice(err))
		s.recorder.ImportFinished(p.Key, "resolution_failed", len(parsed), len(rows)-len(parsed), len(invalid))
		log.Warn("owner resolution failed", "error", err)
		return nil, err
	}

	next := prevDraft.Append(resolved)
	s.publish(sess.transition(restingState(next), &next, "resolved", client, s.now()))

	notice := importNotice(invalid)
	s.notifier.Notify(sess.ID, notice)

	outcome := "clean"
	if len(invalid) > 0 {
		outcome = "with_errors"
	}
	s.recorder.ImportFinished(p.Key, outcome, len(parsed), len(rows)-len(parsed), len(invalid))

	report := &ImportReport{
		SessionID:  sess.ID,
		FileName:   fileName,
		Rows:       len(rows),
		Imported:   len(resolved),
		Dropped:    len(rows) - len(parsed),
		Invalid:    invalid,
		Unresolved: countUnresolved(resolved, p),
		State:      restingState(next),
		Notice:     notice,
		Records:    next.Merged(p),
	}

	log.Info("import finished",
		"rows", report.Rows,
		"imported", report.Imported,
		"dropped", report.Dropped,
		"invalid", len(invalid),
		"unresolved", report.Unresolved,
	)

	return report, nil
}

// resolve fetches the known-record snapshot and runs the resolver under
// the resolve timeout.
func (s *Service) resolve(ctx context.Context, sess *Session, records []Record) ([]Record, error) {
	p := sess.Profile
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	var known []KnownRecord
	if p.Dependency != nil && s.known != nil {
		var err error
		known, err = s.known.KnownRecords(ctx, p, sess.Scope)
		if err != nil {
			return nil, &ResolutionError{Err: fmt.Errorf("list known records: %w", err)}
		}
	}

	start := s.now()
	resolved, err := s.resolver.Resolve(ctx, p, records, known)
	s.recorder.ResolutionObserved(p.Key, s.now().Sub(start), err)
	return resolved, err
}

// ApplyEdit records one field change in the session's draft overlay and
// returns the merged record.
func (s *Service) ApplyEdit(ctx context.Context, sessionID string, e Edit) (Record, error) {
	recs, err := s.ApplyEdits(ctx, sessionID, []Edit{e})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// ApplyEdits records several field changes atomically: either every edit
// lands in the overlay or none does. It returns the merged records that
// were touched, in first-edit order.
func (s *Service) ApplyEdits(ctx context.Context, sessionID string, edits []Edit) ([]Record, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	p := sess.Profile

	for _, e := range edits {
		if !p.Editable(e.Field) {
			return nil, fmt.Errorf("edit %s: %w: %s", e.RecordID, ErrUnknownField, e.Field)
		}
	}

	sess.mu.Lock()
	if sess.busy {
		sess.mu.Unlock()
		return nil, fmt.Errorf("edit: %w", ErrSessionBusy)
	}
	next, err := sess.draft.ApplyEdits(edits)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	ev := sess.transitionLocked(restingState(next), &next, "edited", clientFromContext(ctx), s.now())
	merged := next.Merged(p)
	sess.mu.Unlock()

	s.publish(ev)

	byID := make(map[string]Record, len(merged))
	for _, r := range merged {
		byID[r.ID] = r
	}
	seen := make(map[string]bool, len(edits))
	var out []Record
	for _, e := range edits {
		if seen[e.RecordID] {
			continue
		}
		seen[e.RecordID] = true
		out = append(out, byID[e.RecordID])
	}
	return out, nil
}

// DeleteRecords removes records and their pending edits. Unknown ids are
// ignored. It returns the number of records removed.
func (s *Service) DeleteRecords(ctx context.Context, sessionID string, ids []string) (int, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	if sess.busy {
		sess.mu.Unlock()
		return 0, fmt.Errorf("delete: %w", ErrSessionBusy)
	}
	next, removed := sess.draft.DeleteRecords(ids)
	if removed == 0 {
		sess.mu.Unlock()
		return 0, nil
	}
	ev := sess.transitionLocked(restingState(next), &next, "deleted", clientFromContext(ctx), s.now())
	sess.mu.Unlock()

	s.publish(ev)
	return removed, nil
}

// CommitResult is the outcome of a successful commit.
type CommitResult struct {
	SessionID string `json:"sessionId"`
	Saved     int    `json:"saved"`
	Notice    Notice `json:"notice"`
}

// Commit saves the merged records in one call to the RecordSaver.
//
// It refuses with *CommitError, without calling the saver, when any record
// has an empty or invalid mandatory field. On success the session is
// emptied. On save failure records and overlay are left as they were and
// the error is a *SaveError.
func (s *Service) Commit(ctx context.Context, sessionID string) (*CommitResult, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	p := sess.Profile
	client := clientFromContext(ctx)
	log := logging.ForSession(ctx, sess.ID, p.Key)

	_, draft, err := sess.begin(s.now())
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	defer func() { sess.end(s.now()) }()

	payloads, err := draft.PrepareCommit(p)
	if err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			s.notifier.Notify(sess.ID, commitRefusedNotice(ce))
		}
		s.recorder.CommitFinished(p.Key, "refused", 0)
		return nil, err
	}

	s.publish(sess.transition(StateCommitting, nil, "committing", client, s.now()))

	saveCtx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	err = s.saver.Save(saveCtx, p, sess.Scope, payloads)
	cancel()

	if err != nil {
		s.publish(sess.transition(restingState(draft), nil, "save_failed", client, s.now()))
		msg := saveMessage(err)
		s.notifier.Notify(sess.ID, Notice{Title: TitleError, Message: msg, Severity: SeverityError})
		s.recorder.CommitFinished(p.Key, "failed", len(payloads))
		log.Error("commit failed", "rows", len(payloads), "error", err)

		var se *SaveError
		if !errors.As(err, &se) {
			err = &SaveError{Message: msg, Err: err}
		}
		return nil, err
	}

	empty := State{}
	s.publish(sess.transition(StateEmpty, &empty, "committed", client, s.now()))

	notice := Notice{Title: TitleSuccess, Message: MsgRecordsSaved, Severity: SeveritySuccess}
	s.notifier.Notify(sess.ID, notice)
	s.recorder.CommitFinished(p.Key, "saved", len(payloads))
	log.Info("records committed", "rows", len(payloads))

	return &CommitResult{SessionID: sess.ID, Saved: len(payloads), Notice: notice}, nil
}

// WaitForImports blocks until no import holds a limiter slot.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// StartSessionJanitor expires sessions idle for longer than ttl, checking
// every interval. It blocks until ctx is cancelled.
func (s *Service) StartSessionJanitor(ctx context.Context, interval, ttl time.Duration) {
	slog.Info("session janitor started", "interval", interval, "ttl", ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := s.ExpireIdleSessions(ttl); n > 0 {
				slog.Info("expired idle sessions", "count", n, "remaining", s.SessionCount())
			}
		}
	}
}

// ExpireIdleSessions drops sessions untouched for longer than ttl that are
// not mid-operation, and returns how many were dropped.
func (s *Service) ExpireIdleSessions(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		delete(s.sessions, id)
		slog.Debug("import session expired", "session_id", id)
	}
	return len(expired)
}

func (s *Service) publish(ev SessionEvent) {
	s.notifier.SessionChanged(ev)
}

// limitSize fails reads past the configured maximum with ErrFileTooLarge.
func (s *Service) limitSize(r io.Reader) io.Reader {
	if s.maxFileSize <= 0 {
		return r
	}
	return &sizeLimitedReader{r: r, remaining: s.maxFileSize}
}

type sizeLimitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *sizeLimitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	// Read one byte past the limit so an exactly-full file still succeeds.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

func countUnresolved(records []Record, p *Profile) int {
	n := 0
	for _, rec := range records {
		for _, o := range p.Owners {
			if rec.Fields[o.NameField] != "" && rec.Links[o.LinkField] == nil {
				n++
			}
		}
		if d := p.Dependency; d != nil && rec.Fields[d.NameField] != "" && rec.Links[d.LinkField] == nil {
			n++
		}
	}
	return n
}
