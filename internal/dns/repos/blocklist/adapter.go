package blocklist

import "github.com/hawknest/rrdns/internal/dns/domain"

// QuestionBlocklist adapts a Repository (which decides on a bare domain name)
// to the resolver's Blocklist interface (which decides on a full Question).
// Only Decide's Blocked verdict is consulted here; the configured blocking
// strategy (refused/nxdomain/sinkhole) is applied by the caller that renders
// the final response.
type QuestionBlocklist struct {
	repo Repository
}

// NewQuestionBlocklist wraps repo for use as a resolver.Blocklist.
func NewQuestionBlocklist(repo Repository) *QuestionBlocklist {
	return &QuestionBlocklist{repo: repo}
}

// IsBlocked reports whether the question's owner name matches a block rule.
func (b *QuestionBlocklist) IsBlocked(q domain.Question) bool {
	if b.repo == nil {
		return false
	}
	return b.repo.Decide(q.Name).IsBlocked()
}
