package mission

import (
	"fmt"
	"strings"
)

// Kind selects the step graph a mission runs.
type Kind string

const (
	KindJobSearch   Kind = "job_search"
	KindTailor      Kind = "tailor"
	KindApplication Kind = "application"
	KindDraft       Kind = "draft"
	KindSkillGap    Kind = "skill_gap"
	KindInterview   Kind = "interview"
)

var kindAliases = map[string]Kind{
	"job_search":     KindJobSearch,
	"job_finder":     KindJobSearch,
	"search":         KindJobSearch,
	"tailor":         KindTailor,
	"resume":         KindTailor,
	"resume_tailor":  KindTailor,
	"application":    KindApplication,
	"apply":          KindApplication,
	"draft":          KindDraft,
	"linkedin":       KindDraft,
	"linkedin_post":  KindDraft,
	"skill_gap":      KindSkillGap,
	"gap":            KindSkillGap,
	"interview":      KindInterview,
	"interview_prep": KindInterview,
}

// AllKinds lists every registered mission kind in display order.
func AllKinds() []Kind {
	return []Kind{KindJobSearch, KindTailor, KindApplication, KindDraft, KindSkillGap, KindInterview}
}

func ParseKind(raw string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown mission kind %q", raw)
}
