package persistence

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/team-tickets/internal/domain"
	"github.com/spec-kit/team-tickets/internal/repository"
)

type memberSeedFile struct {
	Members []memberSeed `yaml:"members"`
}

type memberSeed struct {
	Name     string   `yaml:"name"`
	Skills   []string `yaml:"skills"`
	Initials string   `yaml:"initials"`
}

// DefaultMembers is the built-in seed list. Order matters: it is the
// auto-assignment tie-break order.
func DefaultMembers() []domain.TeamMember {
	return []domain.TeamMember{
		{Name: "John Doe", Skills: []string{domain.SkillFrontend}, Initials: "JD"},
		{Name: "Jane Smith", Skills: []string{domain.SkillBackend, domain.SkillDatabase}, Initials: "JS"},
		{Name: "Alex Johnson", Skills: []string{domain.SkillFrontend, domain.SkillBackend}, Initials: "AJ"},
		{Name: "Taylor Green", Skills: []string{domain.SkillFrontend, domain.SkillBackend, domain.SkillDatabase}, Initials: "TG"},
	}
}

// LoadMemberSeed reads members from a YAML file, or returns DefaultMembers when path is empty.
func LoadMemberSeed(path string) ([]domain.TeamMember, error) {
	if path == "" {
		return DefaultMembers(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseMemberSeed(raw)
}

// ParseMemberSeed decodes a YAML member list.
func ParseMemberSeed(raw []byte) ([]domain.TeamMember, error) {
	var file memberSeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	members := make([]domain.TeamMember, 0, len(file.Members))
	for i, m := range file.Members {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("seed member %d: name required", i)
		}
		skills := domain.NormalizeSkills(m.Skills)
		if len(skills) == 0 {
			return nil, fmt.Errorf("seed member %q: at least one skill required", name)
		}
		initials := strings.TrimSpace(m.Initials)
		if initials == "" {
			initials = domain.DeriveInitials(name)
		}
		members = append(members, domain.TeamMember{Name: name, Skills: skills, Initials: initials})
	}
	return members, nil
}

// SeedMembers inserts members when the member set is empty. It returns the
// number of members created.
func SeedMembers(ctx context.Context, store repository.Store, members []domain.TeamMember, logger *zap.Logger) (int, error) {
	created := 0
	err := store.WithinTx(ctx, func(repos repository.Repos) error {
		existing, err := repos.Members.Count(ctx)
		if err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		if existing > 0 {
			logger.Info("members already seeded", zap.Int("count", existing))
			return nil
		}
		for i := range members {
			member := members[i]
			for _, skill := range member.Skills {
				if !domain.IsKnownSkill(skill) {
					logger.Warn("seed member has skill outside vocabulary",
						zap.String("member", member.Name), zap.String("skill", skill))
				}
			}
			if err := repos.Members.Create(ctx, &member); err != nil {
				return fmt.Errorf("create member %q: %w", member.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		logger.Info("seeded team members", zap.Int("count", created))
	}
	return created, nil
}
