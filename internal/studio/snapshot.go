package studio

import "headshot/internal/domain"

// StyleView is the presentable state of one style card.
type StyleView struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Status      domain.GenerationStatus `json:"status"`
	Tier        domain.QualityTier      `json:"tier,omitempty"`
	HasImage    bool                    `json:"has_image"`
	Unlocked    bool                    `json:"unlocked"`
	Action      domain.Action           `json:"action"`
}

// CustomView is the presentable state of the free-text slot.
type CustomView struct {
	Instruction string                  `json:"instruction,omitempty"`
	Status      domain.GenerationStatus `json:"status"`
	HasImage    bool                    `json:"has_image"`
}

// Snapshot is a consistent copy of the session state without image bytes.
type Snapshot struct {
	ID           string            `json:"id"`
	HasSource    bool              `json:"has_source"`
	SourceMIME   string            `json:"source_mime,omitempty"`
	Banner       string            `json:"banner,omitempty"`
	Mode         domain.UnlockMode `json:"unlock_mode"`
	Styles       []StyleView       `json:"styles"`
	Custom       CustomView        `json:"custom"`
	Unlocked     []string          `json:"unlocked"`
	BatchRunning bool              `json:"batch_running"`
}

// Snapshot captures the session state in catalog order.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		HasSource:    s.source != nil,
		Banner:       s.banner,
		Mode:         s.deps.Mode,
		Unlocked:     s.unlockedLocked(),
		BatchRunning: s.batching,
	}
	if s.source != nil {
		snap.SourceMIME = s.source.MIMEType
	}

	standard := s.deps.Catalog.Standard()
	snap.Styles = make([]StyleView, 0, len(standard))
	for _, p := range standard {
		res := s.results[p.ID].Normalized()
		_, unlocked := s.unlocked[p.ID]
		snap.Styles = append(snap.Styles, StyleView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Status:      res.Status,
			Tier:        res.Tier,
			HasImage:    res.HasImage(),
			Unlocked:    unlocked,
			Action:      Decide(res, unlocked, s.deps.Mode),
		})
	}

	status := s.custom.Status
	if status == "" {
		status = domain.StatusIdle
	}
	snap.Custom = CustomView{
		Instruction: s.custom.Instruction,
		Status:      status,
		HasImage:    s.custom.HasImage(),
	}
	return snap
}
