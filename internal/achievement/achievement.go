package achievement

import (
	_ "embed"
	"fmt"
	"time"

	"focusQuestAPI/internal/progression"

	"gopkg.in/yaml.v3"
)

type CriteriaType string

const (
	CriteriaStreak            CriteriaType = "streak"
	CriteriaLevel             CriteriaType = "level"
	CriteriaTasksCompleted    CriteriaType = "tasks_completed"
	CriteriaSessionsCompleted CriteriaType = "sessions_completed"
	CriteriaLongestSession    CriteriaType = "longest_session_minutes"
	CriteriaTotalFocusHours   CriteriaType = "total_focus_hours"
	CriteriaProjectsCreated   CriteriaType = "projects_created"
)

type Criteria struct {
	Type  CriteriaType `yaml:"type" json:"type"`
	Value float64      `yaml:"value" json:"value"`
}

type Achievement struct {
	Code        string   `yaml:"code" json:"code"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Icon        string   `yaml:"icon" json:"icon"`
	Criteria    Criteria `yaml:"criteria" json:"criteria"`
	XPBonus     int64    `yaml:"xp_bonus" json:"xpBonus"`
}

type Skill struct {
	Code     string   `yaml:"code" json:"code"`
	Name     string   `yaml:"name" json:"name"`
	Tier     int      `yaml:"tier" json:"tier"`
	Requires []string `yaml:"requires" json:"requires,omitempty"`
	Criteria Criteria `yaml:"criteria" json:"criteria"`
}

type SkillTree struct {
	Code   string  `yaml:"code" json:"code"`
	Name   string  `yaml:"name" json:"name"`
	Skills []Skill `yaml:"skills" json:"skills"`
}

type Catalog struct {
	Achievements []Achievement `yaml:"achievements"`
	SkillTrees   []SkillTree   `yaml:"skill_trees"`
}

// Stats are the per-user aggregates every criterion is measured against.
type Stats struct {
	Streak                int     `json:"streak"`
	Level                 int     `json:"level"`
	TasksCompleted        int     `json:"tasksCompleted"`
	SessionsCompleted     int     `json:"sessionsCompleted"`
	LongestSessionMinutes float64 `json:"longestSessionMinutes"`
	TotalFocusHours       float64 `json:"totalFocusHours"`
	ProjectsCreated       int     `json:"projectsCreated"`
}

type AchievementWithStatus struct {
	Achievement
	Progress   float64    `json:"progress"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

type SkillWithStatus struct {
	Skill
	Progress float64 `json:"progress"`
	Unlocked bool    `json:"unlocked"`
	// Available is true when every required skill is unlocked.
	Available bool `json:"available"`
}

type SkillTreeWithStatus struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Skills   []SkillWithStatus `json:"skills"`
	Unlocked int               `json:"unlocked"`
	Total    int               `json:"total"`
}

//go:embed catalog.yaml
var catalogYAML []byte

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool)
	for _, a := range c.Achievements {
		if a.Code == "" {
			return fmt.Errorf("achievement %q has no code", a.Name)
		}
		if seen[a.Code] {
			return fmt.Errorf("duplicate achievement code %q", a.Code)
		}
		if !knownCriteria(a.Criteria.Type) {
			return fmt.Errorf("achievement %q: unknown criteria type %q", a.Code, a.Criteria.Type)
		}
		seen[a.Code] = true
	}

	for _, tree := range c.SkillTrees {
		skills := make(map[string]bool)
		for _, s := range tree.Skills {
			if !knownCriteria(s.Criteria.Type) {
				return fmt.Errorf("skill %q: unknown criteria type %q", s.Code, s.Criteria.Type)
			}
			for _, req := range s.Requires {
				// requirements must appear earlier in the same tree
				if !skills[req] {
					return fmt.Errorf("skill %q requires unknown or later skill %q", s.Code, req)
				}
			}
			skills[s.Code] = true
		}
	}
	return nil
}

func knownCriteria(t CriteriaType) bool {
	switch t {
	case CriteriaStreak, CriteriaLevel, CriteriaTasksCompleted, CriteriaSessionsCompleted,
		CriteriaLongestSession, CriteriaTotalFocusHours, CriteriaProjectsCreated:
		return true
	}
	return false
}

// Measure returns the stat a criterion compares against.
func (s Stats) Measure(t CriteriaType) float64 {
	switch t {
	case CriteriaStreak:
		return float64(s.Streak)
	case CriteriaLevel:
		return float64(s.Level)
	case CriteriaTasksCompleted:
		return float64(s.TasksCompleted)
	case CriteriaSessionsCompleted:
		return float64(s.SessionsCompleted)
	case CriteriaLongestSession:
		return s.LongestSessionMinutes
	case CriteriaTotalFocusHours:
		return s.TotalFocusHours
	case CriteriaProjectsCreated:
		return float64(s.ProjectsCreated)
	}
	return 0
}

// ProgressFor is the fraction of a criterion met by stats.
func ProgressFor(c Criteria, stats Stats) float64 {
	return progression.Progress(stats.Measure(c.Type), c.Value)
}

// EvaluateAchievements computes progress for every achievement. unlockedAt
// carries persisted unlock times keyed by code.
func (c *Catalog) EvaluateAchievements(stats Stats, unlockedAt map[string]time.Time) []*AchievementWithStatus {
	out := make([]*AchievementWithStatus, 0, len(c.Achievements))
	for _, a := range c.Achievements {
		status := &AchievementWithStatus{Achievement: a, Progress: ProgressFor(a.Criteria, stats)}
		if at, ok := unlockedAt[a.Code]; ok {
			at := at
			status.Unlocked = true
			status.UnlockedAt = &at
			status.Progress = 1
		} else if status.Progress >= 1 {
			status.Unlocked = true
		}
		out = append(out, status)
	}
	return out
}

// NewlyUnlocked returns achievements whose criteria are met but that have
// no persisted unlock yet.
func (c *Catalog) NewlyUnlocked(stats Stats, unlocked map[string]time.Time) []Achievement {
	var out []Achievement
	for _, a := range c.Achievements {
		if _, ok := unlocked[a.Code]; ok {
			continue
		}
		if ProgressFor(a.Criteria, stats) >= 1 {
			out = append(out, a)
		}
	}
	return out
}

// EvaluateSkills walks each tree in order; a skill unlocks only when its own
// criteria are met and all of its requirements unlocked.
func (c *Catalog) EvaluateSkills(stats Stats) []*SkillTreeWithStatus {
	out := make([]*SkillTreeWithStatus, 0, len(c.SkillTrees))
	for _, tree := range c.SkillTrees {
		unlocked := make(map[string]bool)
		ts := &SkillTreeWithStatus{Code: tree.Code, Name: tree.Name, Total: len(tree.Skills)}

		for _, s := range tree.Skills {
			available := true
			for _, req := range s.Requires {
				if !unlocked[req] {
					available = false
					break
				}
			}
			progress := ProgressFor(s.Criteria, stats)
			isUnlocked := available && progress >= 1
			if isUnlocked {
				unlocked[s.Code] = true
				ts.Unlocked++
			}
			ts.Skills = append(ts.Skills, SkillWithStatus{
				Skill:     s,
				Progress:  progress,
				Unlocked:  isUnlocked,
				Available: available,
			})
		}
		out = append(out, ts)
	}
	return out
}
