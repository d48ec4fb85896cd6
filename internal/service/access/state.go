package access

import "github.com/Alijeyrad/medvault_backend/internal/repo"

var transitions = map[repo.Status][]repo.Status{
	repo.StatusPending: {repo.StatusGranted, repo.StatusDenied},
	repo.StatusGranted: {repo.StatusRevoked},
}

// CanTransition reports whether a request may move from one state to another.
// Denied and revoked are terminal.
func CanTransition(from, to repo.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s repo.Status) bool {
	return len(transitions[s]) == 0
}
