package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"headshot/internal/catalog"
	"headshot/internal/domain"
	"headshot/internal/infra"
)

const (
	// MaxSourceBytes bounds uploaded source images.
	MaxSourceBytes = 5 << 20
	// DefaultBatchDelay spaces generate-all dispatches to stay under the remote rate limit.
	DefaultBatchDelay = 1200 * time.Millisecond

	msgFileTooLarge     = "File size too large. Please upload an image under 5MB."
	msgUnsupportedMedia = "Unsupported file type. Please upload a JPG, PNG or WEBP image."
	msgNotAPerson       = "Please upload a photo of a person."
)

// BatchPolicy selects how generate-all dispatches its calls.
type BatchPolicy string

const (
	// BatchSequential issues one call at a time with a fixed delay in between.
	BatchSequential BatchPolicy = "sequential"
	// BatchParallel issues every call at once.
	BatchParallel BatchPolicy = "parallel"
)

// ParseBatchPolicy maps configuration input to a policy, defaulting to sequential.
func ParseBatchPolicy(v string) BatchPolicy {
	if strings.EqualFold(strings.TrimSpace(v), string(BatchParallel)) {
		return BatchParallel
	}
	return BatchSequential
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Catalog   *catalog.Catalog
	Editor    Editor
	Validator Validator
	Unlocks   UnlockStore
	Keys      KeySelector
	Notifier  Notifier
	Logger    *infra.Logger

	Mode           domain.UnlockMode
	Policy         BatchPolicy
	BatchDelay     time.Duration
	MaxSourceBytes int64

	// Sleep waits between sequential dispatches; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		d.Logger = &l
	}
	if d.Mode == "" {
		d.Mode = domain.UnlockPaywall
	}
	if d.Policy == "" {
		d.Policy = BatchSequential
	}
	if d.BatchDelay < 0 {
		d.BatchDelay = 0
	}
	if d.MaxSourceBytes <= 0 {
		d.MaxSourceBytes = MaxSourceBytes
	}
	if d.Sleep == nil {
		d.Sleep = sleepContext
	}
	return d
}

// Session owns the generation state of one browsing session.
type Session struct {
	id   string
	deps Deps
	log  zerolog.Logger

	mu       sync.Mutex
	source   *domain.Image
	results  map[string]domain.GenerationResult
	latest   map[string]uint64
	seq      uint64
	custom   CustomSlot
	customAt uint64
	banner   string
	unlocked map[string]struct{}
	batching bool
	batchGen uint64
}

// NewSession opens a session and reloads its persisted unlock set.
func NewSession(ctx context.Context, id string, deps Deps) (*Session, error) {
	deps = deps.withDefaults()
	if deps.Editor == nil {
		return nil, errors.New("studio: editor is required")
	}
	s := &Session{
		id:       id,
		deps:     deps,
		log:      deps.Logger.With().Str("session_id", id).Logger(),
		results:  make(map[string]domain.GenerationResult),
		latest:   make(map[string]uint64),
		unlocked: make(map[string]struct{}),
	}
	if deps.Unlocks != nil {
		ids, err := deps.Unlocks.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load unlocks: %w", err)
		}
		for _, styleID := range ids {
			s.unlocked[styleID] = struct{}{}
		}
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the configured unlock mode.
func (s *Session) Mode() domain.UnlockMode {
	return s.deps.Mode
}

// Catalog returns the style catalog backing the session.
func (s *Session) Catalog() *catalog.Catalog {
	return s.deps.Catalog
}

// AcceptSource validates and stores a new source photo. Every per-style
// result, the custom slot and the banner are cleared; unlocks survive.
func (s *Session) AcceptSource(ctx context.Context, data []byte) (domain.Image, error) {
	if int64(len(data)) > s.deps.MaxSourceBytes {
		return domain.Image{}, s.RejectOversized(int64(len(data)))
	}
	mime := mimetype.Detect(data)
	if len(data) == 0 || !strings.HasPrefix(mime.String(), "image/") {
		s.setBanner(msgUnsupportedMedia)
		return domain.Image{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mime.String())
	}
	img := domain.Image{Data: append([]byte(nil), data...), MIMEType: mediaType(mime.String())}

	if s.deps.Validator != nil {
		verdict, err := s.deps.Validator.ValidatePerson(ctx, img)
		switch {
		case err != nil:
			s.log.Warn().Err(fmt.Errorf("%w: %v", domain.ErrValidationUnavailable, err)).Msg("studio: validator failed, accepting source unvalidated")
		case !verdict.Valid:
			msg := strings.TrimSpace(verdict.Message)
			if msg == "" {
				msg = msgNotAPerson
			}
			s.setBanner(msg)
			return domain.Image{}, &domain.RejectionError{Message: msg}
		}
	}

	s.mu.Lock()
	s.source = &img
	s.clearLocked()
	s.mu.Unlock()

	s.log.Info().Str("mime", img.MIMEType).Int("bytes", len(img.Data)).Msg("studio: source accepted")
	s.publish(EventState, "")
	return img, nil
}

// RejectOversized records a source refused for its size before it was read
// in full. size is the known or declared byte count, -1 when unknown.
func (s *Session) RejectOversized(size int64) error {
	s.setBanner(msgFileTooLarge)
	if size < 0 {
		return fmt.Errorf("%w: over %d bytes", domain.ErrFileTooLarge, s.deps.MaxSourceBytes)
	}
	return fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, size)
}

// Reset drops the source photo and every generation result. Unlocks survive.
func (s *Session) Reset() {
	s.mu.Lock()
	s.source = nil
	s.clearLocked()
	s.mu.Unlock()
	s.publish(EventState, "")
}

func (s *Session) clearLocked() {
	s.results = make(map[string]domain.GenerationResult)
	// Forgetting the latest sequences drops responses issued for an older source.
	s.latest = make(map[string]uint64)
	s.custom = CustomSlot{}
	s.customAt = 0
	s.banner = ""
	// A running batch belongs to the previous source and stops at its next step.
	s.batching = false
	s.batchGen++
}

func (s *Session) setBanner(msg string) {
	s.mu.Lock()
	s.banner = msg
	s.mu.Unlock()
	s.publish(EventState, "")
}

// Source returns the current source photo.
func (s *Session) Source() (domain.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return domain.Image{}, false
	}
	return *s.source, true
}

// Result returns the state of a style, Idle when never referenced.
func (s *Session) Result(styleID string) domain.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[styleID].Normalized()
}

// GenerateOne generates a style at the given tier. Remote failures are folded
// into the returned state; errors only report unmet preconditions.
func (s *Session) GenerateOne(ctx context.Context, styleID string, tier domain.QualityTier) (domain.GenerationResult, error) {
	preset, err := s.standardPreset(styleID)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return domain.GenerationResult{}, domain.ErrNoSource
	}
	src := *s.source
	seq := s.beginLocked(preset.ID)
	s.mu.Unlock()

	s.publish(EventState, preset.ID)
	return s.dispatch(ctx, preset, src, tier, seq), nil
}

func (s *Session) standardPreset(styleID string) (catalog.StylePreset, error) {
	preset, err := s.deps.Catalog.Lookup(styleID)
	if err != nil {
		return catalog.StylePreset{}, err
	}
	if preset.Custom {
		return catalog.StylePreset{}, domain.ErrCustomStyle
	}
	return preset, nil
}

// beginLocked marks a style Loading, keeping any retained image, and issues
// the fencing sequence for the upcoming call.
func (s *Session) beginLocked(styleID string) uint64 {
	prev := s.results[styleID]
	s.results[styleID] = domain.GenerationResult{
		Status: domain.StatusLoading,
		Image:  prev.Image,
		Tier:   prev.Tier,
	}
	s.seq++
	s.latest[styleID] = s.seq
	return s.seq
}

func (s *Session) dispatch(ctx context.Context, preset catalog.StylePreset, src domain.Image, tier domain.QualityTier, seq uint64) domain.GenerationResult {
	log := s.log.With().Str("style_id", preset.ID).Str("tier", string(tier)).Uint64("seq", seq).Logger()
	log.Debug().Msg("studio: dispatching edit")

	img, err := s.deps.Editor.EditImage(ctx, EditRequest{
		StyleID:     preset.ID,
		Source:      src,
		Instruction: preset.Instruction,
		Tier:        tier,
	})
	if err == nil && img.Empty() {
		err = domain.ErrNoImageInResponse
	}

	s.mu.Lock()
	current := s.results[preset.ID]
	if s.latest[preset.ID] != seq {
		s.mu.Unlock()
		log.Debug().Msg("studio: discarding superseded response")
		return current.Normalized()
	}
	var next domain.GenerationResult
	switch {
	case err == nil:
		next = domain.GenerationResult{Status: domain.StatusSuccess, Image: &img, Tier: tier}
	case current.HasImage():
		next = domain.GenerationResult{Status: domain.StatusSuccess, Image: current.Image, Tier: current.Tier}
	default:
		next = domain.GenerationResult{Status: domain.StatusError}
	}
	s.results[preset.ID] = next
	s.mu.Unlock()

	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)).Bool("kept_previous", next.HasImage()).Msg("studio: generation failed")
	} else {
		log.Info().Int("bytes", len(img.Data)).Msg("studio: generation succeeded")
	}
	s.publish(EventState, preset.ID)
	return next
}

// GenerateAt is GenerateOne behind the tier gate: the high tier is only
// reachable in upgrade mode and only once a credential was selected.
func (s *Session) GenerateAt(ctx context.Context, styleID string, tier domain.QualityTier) (domain.GenerationResult, error) {
	if tier == "" {
		tier = domain.TierPreview
	}
	switch tier {
	case domain.TierPreview:
	case domain.TierHigh:
		if s.deps.Mode != domain.UnlockUpgrade {
			return domain.GenerationResult{}, domain.ErrTierUnavailable
		}
		if _, err := s.standardPreset(styleID); err != nil {
			return domain.GenerationResult{}, err
		}
		if err := s.ensureKey(ctx, styleID); err != nil {
			return domain.GenerationResult{}, err
		}
	default:
		return domain.GenerationResult{}, fmt.Errorf("%w: %q", domain.ErrTierUnavailable, tier)
	}
	return s.GenerateOne(ctx, styleID, tier)
}

func (s *Session) ensureKey(ctx context.Context, styleID string) error {
	if s.deps.Keys == nil {
		return nil
	}
	err := s.deps.Keys.EnsureKey(ctx)
	if err == nil {
		return nil
	}
	s.log.Warn().Err(err).Str("style_id", styleID).Msg("studio: key selection failed, upgrade aborted")
	if errors.Is(err, domain.ErrKeySelectionDeclined) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrKeySelectionDeclined, err)
}

// Batch is a prepared generate-all run.
type Batch struct {
	s       *Session
	src     domain.Image
	presets []catalog.StylePreset
	seqs    map[string]uint64
	prev    map[string]domain.GenerationResult
	gen     uint64
}

// StyleIDs lists the styles selected by the batch in dispatch order.
func (b *Batch) StyleIDs() []string {
	ids := make([]string, len(b.presets))
	for i, p := range b.presets {
		ids[i] = p.ID
	}
	return ids
}

// PrepareAll selects every standard style not yet in Success and marks them
// Loading at once. A nil batch means there is nothing to do.
func (s *Session) PrepareAll() (*Batch, error) {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoSource
	}
	if s.batching {
		s.mu.Unlock()
		return nil, domain.ErrBatchInProgress
	}
	b := &Batch{
		s:    s,
		src:  *s.source,
		seqs: make(map[string]uint64),
		prev: make(map[string]domain.GenerationResult),
	}
	for _, p := range s.deps.Catalog.Standard() {
		if s.results[p.ID].Status == domain.StatusSuccess {
			continue
		}
		b.presets = append(b.presets, p)
	}
	if len(b.presets) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	for _, p := range b.presets {
		b.prev[p.ID] = s.results[p.ID]
		b.seqs[p.ID] = s.beginLocked(p.ID)
	}
	s.batching = true
	s.batchGen++
	b.gen = s.batchGen
	s.mu.Unlock()

	s.log.Info().Strs("styles", b.StyleIDs()).Str("policy", string(s.deps.Policy)).Msg("studio: generate all prepared")
	s.publish(EventState, "")
	return b, nil
}

// Run dispatches the batch according to the session policy.
func (b *Batch) Run(ctx context.Context) {
	s := b.s
	defer func() {
		s.mu.Lock()
		current := s.batchGen == b.gen
		if current {
			s.batching = false
		}
		s.mu.Unlock()
		if current {
			s.publish(EventState, "")
		}
	}()

	if s.deps.Policy == BatchParallel {
		b.runParallel(ctx)
		return
	}
	for i, p := range b.presets {
		if i > 0 {
			if err := s.deps.Sleep(ctx, s.deps.BatchDelay); err != nil {
				b.release(b.presets[i:])
				s.log.Warn().Err(err).Msg("studio: generate all interrupted")
				return
			}
		}
		if !b.current() {
			s.log.Info().Str("style_id", p.ID).Msg("studio: generate all superseded")
			return
		}
		if !b.owns(p.ID) {
			continue
		}
		s.dispatch(ctx, p, b.src, domain.TierPreview, b.seqs[p.ID])
	}
}

// current reports whether the batch was not superseded by a new source or reset.
func (b *Batch) current() bool {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.s.batchGen == b.gen
}

// owns reports whether the batch still holds the latest sequence for a style.
func (b *Batch) owns(styleID string) bool {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.s.latest[styleID] == b.seqs[styleID]
}

// release restores styles that were marked Loading but never dispatched.
func (b *Batch) release(presets []catalog.StylePreset) {
	s := b.s
	s.mu.Lock()
	for _, p := range presets {
		if s.latest[p.ID] != b.seqs[p.ID] {
			continue
		}
		delete(s.latest, p.ID)
		s.results[p.ID] = b.prev[p.ID]
	}
	s.mu.Unlock()
}

// GenerateAll prepares and runs a batch, returning the dispatched style ids.
func (s *Session) GenerateAll(ctx context.Context) ([]string, error) {
	b, err := s.PrepareAll()
	if err != nil || b == nil {
		return nil, err
	}
	b.Run(ctx)
	return b.StyleIDs(), nil
}

// PaywallPrompt describes the purchase flow for a style.
type PaywallPrompt struct {
	StyleID string
	Name    string
}

// Outcome is what RouteAction performed.
type Outcome struct {
	Action   domain.Action
	Result   domain.GenerationResult
	Download *Download
	Paywall  *PaywallPrompt
}

// RouteAction performs the next action for a style card.
func (s *Session) RouteAction(ctx context.Context, styleID string) (Outcome, error) {
	preset, err := s.standardPreset(styleID)
	if err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	res := s.results[preset.ID].Normalized()
	_, unlocked := s.unlocked[preset.ID]
	s.mu.Unlock()

	action := Decide(res, unlocked, s.deps.Mode)
	out := Outcome{Action: action, Result: res}
	switch action {
	case domain.ActionGenerate:
		out.Result, err = s.GenerateOne(ctx, preset.ID, domain.TierPreview)
		return out, err
	case domain.ActionUpgrade:
		if err := s.ensureKey(ctx, preset.ID); err != nil {
			return Outcome{}, err
		}
		out.Result, err = s.GenerateOne(ctx, preset.ID, domain.TierHigh)
		return out, err
	case domain.ActionOpenPaywall:
		out.Paywall = &PaywallPrompt{StyleID: preset.ID, Name: preset.Name}
		return out, nil
	case domain.ActionDownload:
		d := downloadFor(preset.ID, res)
		out.Download = &d
		return out, nil
	default:
		return out, nil
	}
}

// Download returns the style image when the current state allows it.
func (s *Session) Download(styleID string) (Download, error) {
	preset, err := s.standardPreset(styleID)
	if err != nil {
		return Download{}, err
	}
	s.mu.Lock()
	res := s.results[preset.ID].Normalized()
	_, unlocked := s.unlocked[preset.ID]
	s.mu.Unlock()
	if Decide(res, unlocked, s.deps.Mode) != domain.ActionDownload {
		return Download{}, domain.ErrNotDownloadable
	}
	return downloadFor(preset.ID, res), nil
}

// Downloads returns every style that is currently downloadable, in catalog order.
func (s *Session) Downloads() []Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Download
	for _, p := range s.deps.Catalog.Standard() {
		res := s.results[p.ID].Normalized()
		_, unlocked := s.unlocked[p.ID]
		if Decide(res, unlocked, s.deps.Mode) == domain.ActionDownload {
			out = append(out, downloadFor(p.ID, res))
		}
	}
	return out
}

// StyleImage returns the retained image of a style for display.
func (s *Session) StyleImage(styleID string) (domain.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.results[styleID]
	if !res.HasImage() {
		return domain.Image{}, domain.ErrNotFound
	}
	return *res.Image, nil
}

func downloadFor(styleID string, res domain.GenerationResult) Download {
	return Download{
		FileName: DownloadName(styleID, res.Tier, res.Image.MIMEType),
		MIMEType: res.Image.MIMEType,
		Data:     res.Image.Data,
	}
}

// CompletePurchase unlocks a style after the checkout provider confirmed payment.
func (s *Session) CompletePurchase(ctx context.Context, styleID string) error {
	if s.deps.Mode != domain.UnlockPaywall {
		return domain.ErrPaywallDisabled
	}
	preset, err := s.standardPreset(styleID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unlocked[preset.ID] = struct{}{}
	ids := s.unlockedLocked()
	s.mu.Unlock()

	s.log.Info().Str("style_id", preset.ID).Msg("studio: purchase completed")
	var saveErr error
	if s.deps.Unlocks != nil {
		if err := s.deps.Unlocks.Save(ctx, s.id, ids); err != nil {
			saveErr = fmt.Errorf("%w: %v", domain.ErrUnlockNotPersisted, err)
			s.log.Error().Err(saveErr).Msg("studio: persisting unlocks failed")
		}
	}
	s.publish(EventCelebrate, preset.ID)
	s.publish(EventState, preset.ID)
	return saveErr
}

// Unlocked reports whether a style has been purchased.
func (s *Session) Unlocked(styleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unlocked[styleID]
	return ok
}

func (s *Session) unlockedLocked() []string {
	ids := make([]string, 0, len(s.unlocked))
	for id := range s.unlocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GenerateCustom runs the free-text flow on the independent custom slot.
func (s *Session) GenerateCustom(ctx context.Context, freeText string) (CustomSlot, error) {
	text := NormalizeInstruction(freeText)
	if text == "" {
		return CustomSlot{}, domain.ErrEmptyInstruction
	}

	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return CustomSlot{}, domain.ErrNoSource
	}
	src := *s.source
	s.seq++
	seq := s.seq
	s.customAt = seq
	s.custom = CustomSlot{Instruction: text, Status: domain.StatusLoading, Image: s.custom.Image}
	s.mu.Unlock()
	s.publish(EventState, catalog.CustomID)

	img, err := s.deps.Editor.EditImage(ctx, EditRequest{
		StyleID:     catalog.CustomID,
		Source:      src,
		Instruction: BuildCustomInstruction(text),
		Tier:        domain.TierPreview,
	})
	if err == nil && img.Empty() {
		err = domain.ErrNoImageInResponse
	}

	s.mu.Lock()
	if s.customAt != seq {
		slot := s.custom
		s.mu.Unlock()
		return slot, nil
	}
	if err != nil {
		// The last good image stays visible until an explicit reset.
		s.custom.Status = domain.StatusError
	} else {
		s.custom.Status = domain.StatusSuccess
		s.custom.Image = &img
	}
	slot := s.custom
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)).Msg("studio: custom generation failed")
	}
	s.publish(EventState, catalog.CustomID)
	return slot, nil
}

// CustomDownload returns the custom result under its fixed file name.
func (s *Session) CustomDownload() (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.custom.HasImage() {
		return Download{}, domain.ErrNotDownloadable
	}
	return Download{
		FileName: CustomFileName,
		MIMEType: s.custom.Image.MIMEType,
		Data:     s.custom.Image.Data,
	}, nil
}

// Busy reports whether a generate-all batch is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batching
}

func (s *Session) publish(kind, styleID string) {
	if s.deps.Notifier == nil {
		return
	}
	snap := s.Snapshot()
	s.deps.Notifier.Publish(s.id, Event{Type: kind, StyleID: styleID, Snapshot: &snap})
}

func mediaType(v string) string {
	if idx := strings.IndexByte(v, ';'); idx >= 0 {
		v = v[:idx]
	}
	return strings.TrimSpace(v)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Batch) runParallel(ctx context.Context) {
	var (
		mu      sync.Mutex
		skipped []catalog.StylePreset
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range b.presets {
		p := p
		g.Go(func() error {
			// A cancelled batch leaves the remaining styles undispatched.
			if err := gctx.Err(); err != nil {
				mu.Lock()
				skipped = append(skipped, p)
				mu.Unlock()
				return err
			}
			if !b.current() || !b.owns(p.ID) {
				return nil
			}
			b.s.dispatch(gctx, p, b.src, domain.TierPreview, b.seqs[p.ID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.release(skipped)
		b.s.log.Warn().Err(err).Msg("studio: generate all interrupted")
	}
}
