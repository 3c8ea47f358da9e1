package domain

// Skill tags shared by member capabilities and ticket requirements.
const (
	SkillFrontend = "Frontend"
	SkillBackend  = "Backend"
	SkillDatabase = "Database"
	SkillDesign   = "Design"
)

// SkillVocabulary is the fixed, ordered list of known skill tags.
var SkillVocabulary = []string{SkillFrontend, SkillBackend, SkillDatabase, SkillDesign}

// IsKnownSkill reports whether tag belongs to SkillVocabulary.
func IsKnownSkill(tag string) bool {
	for _, s := range SkillVocabulary {
		if s == tag {
			return true
		}
	}
	return false
}

// NormalizeSkills drops empty and duplicate tags, keeping first-seen order.
func NormalizeSkills(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
